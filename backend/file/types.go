package file

import (
	"github.com/GlintPay/gsni/config"
	"github.com/GlintPay/gsni/filetypes"
)

type Backend struct {
	Config    config.FileConfig
	Decrypter filetypes.Decrypter
}

func (s *Backend) Order() int {
	return s.Config.Order
}

func (s *Backend) Location() string {
	return s.Config.Path
}
