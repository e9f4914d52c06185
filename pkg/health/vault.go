package health

import (
	"fmt"
	"os"
	"strings"

	"github.com/cuemby/hutch/pkg/vault"
)

// VaultChecker verifies the vault root exists and the required folder
// structure is intact.
type VaultChecker struct {
	vault *vault.Vault
}

// NewVaultChecker creates a checker for the given vault.
func NewVaultChecker(v *vault.Vault) *VaultChecker {
	return &VaultChecker{vault: v}
}

// Name returns the subsystem name.
func (c *VaultChecker) Name() string {
	return "vault"
}

// Check fails when the root is gone or any required folder or file is
// missing.
func (c *VaultChecker) Check() error {
	if info, err := os.Stat(c.vault.Root()); err != nil || !info.IsDir() {
		return fmt.Errorf("vault root not accessible: %s", c.vault.Root())
	}
	if missing := c.vault.Validate(); len(missing) > 0 {
		return fmt.Errorf("missing: %s", strings.Join(missing, ", "))
	}
	return nil
}
