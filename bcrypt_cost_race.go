//go:build race

package signup

import "golang.org/x/crypto/bcrypt"

// race builds run much slower, hashing at the library default keeps
// registration tests inside their timeouts.
func passwordHashCost() int {
	return bcrypt.DefaultCost
}
