package auth

import "golang.org/x/crypto/bcrypt"

// bcrypt cost 12 keeps a hash around 250ms on current hardware.
const hashCost = 12

// HashPassword returns the bcrypt hash of password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	return string(hash), err
}

// ComparePassword reports whether password matches the stored hash.
func ComparePassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
