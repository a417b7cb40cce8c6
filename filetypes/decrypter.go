package filetypes

// Decrypter turns stored bytes into a plain PEM pile
type Decrypter interface {
	Decrypt(data []byte) ([]byte, error)
}

// NoDecrypter passes content through untouched
type NoDecrypter struct{}

func (NoDecrypter) Decrypt(data []byte) ([]byte, error) {
	return data, nil
}
