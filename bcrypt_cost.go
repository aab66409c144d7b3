//go:build !race

package signup

func passwordHashCost() int {
	return 12
}
