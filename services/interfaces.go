package services

// PasswordHasher hashes and verifies resource-owner passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hashedPassword, password string) error
}
