package sops

import (
	"gopkg.in/yaml.v3"
)

// Metadata the parts of a sops envelope worth logging
type Metadata struct {
	Kms          []any  `yaml:"kms,omitempty"`
	GcpKms       []any  `yaml:"gcp_kms,omitempty"`
	AzureKv      []any  `yaml:"azure_kv,omitempty"`
	Age          []any  `yaml:"age,omitempty"`
	Pgp          []any  `yaml:"pgp,omitempty"`
	LastModified string `yaml:"lastmodified,omitempty"`
	Version      string `yaml:"version,omitempty"`
}

type envelope struct {
	Sops *Metadata `yaml:"sops"`
}

// ReadMetadata returns nil unless data is a YAML or JSON document with a top-level `sops` key
func ReadMetadata(data []byte) *Metadata {
	var env envelope
	if err := yaml.Unmarshal(data, &env); err != nil {
		return nil
	}
	return env.Sops
}

// KeyTypes names the key services able to decrypt the envelope
func (m Metadata) KeyTypes() []string {
	var types []string
	if len(m.Kms) > 0 {
		types = append(types, "kms")
	}
	if len(m.GcpKms) > 0 {
		types = append(types, "gcp_kms")
	}
	if len(m.AzureKv) > 0 {
		types = append(types, "azure_kv")
	}
	if len(m.Age) > 0 {
		types = append(types, "age")
	}
	if len(m.Pgp) > 0 {
		types = append(types, "pgp")
	}
	return types
}
