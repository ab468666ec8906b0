package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PaymentAssetRule is one allow-list entry for a payment asset.
type PaymentAssetRule struct {
	Symbol  string `yaml:"symbol"`
	Allowed bool   `yaml:"allowed"`
}

// PaymentPolicy is the externally managed policy table listing which assets
// may settle the payment side of new listings.
type PaymentPolicy struct {
	PaymentAssets []PaymentAssetRule `yaml:"payment_assets"`
}

// LoadPaymentPolicy reads the YAML policy table at path. A missing path
// yields an empty policy, leaving every payment asset disallowed.
func LoadPaymentPolicy(path string) (*PaymentPolicy, error) {
	if path == "" {
		return &PaymentPolicy{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &PaymentPolicy{}, nil
		}
		return nil, err
	}
	policy := &PaymentPolicy{}
	if err := yaml.Unmarshal(data, policy); err != nil {
		return nil, fmt.Errorf("config: invalid payment policy: %w", err)
	}
	return policy, nil
}
