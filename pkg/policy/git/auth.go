package git

import (
	"fmt"
	"os"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"mercator-hq/vigil/pkg/config"
)

// checkAuth validates the auth settings without reading key files, so a
// bad configuration fails before any network access.
func checkAuth(cfg config.GitAuthConfig) error {
	switch cfg.Type {
	case "", "none":
		return nil
	case "token":
		if cfg.Token == "" {
			return fmt.Errorf("token auth requires a token")
		}
		return nil
	case "ssh":
		if cfg.SSHKeyPath == "" {
			return fmt.Errorf("ssh auth requires ssh_key_path")
		}
		return nil
	}
	return fmt.Errorf("unknown auth type %q (valid: none, token, ssh)", cfg.Type)
}

// authMethod builds the transport credentials for cfg. A nil method means
// anonymous access. Tokens are sent as the HTTPS basic auth password,
// which is what GitHub, GitLab and Bitbucket expect.
func authMethod(cfg config.GitAuthConfig) (transport.AuthMethod, error) {
	if err := checkAuth(cfg); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "token":
		return &http.BasicAuth{Username: "git", Password: cfg.Token}, nil

	case "ssh":
		info, err := os.Stat(cfg.SSHKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to access SSH key file: %w", err)
		}
		// Same rule as OpenSSH: private keys must not be group or world readable.
		if perm := info.Mode().Perm(); perm&0o077 != 0 {
			return nil, fmt.Errorf("SSH key file permissions too open (%o), should be 0600", perm)
		}
		keys, err := ssh.NewPublicKeysFromFile("git", cfg.SSHKeyPath, cfg.SSHKeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to load SSH key: %w", err)
		}
		return keys, nil
	}
	return nil, nil
}

func authKind(cfg config.GitAuthConfig) string {
	if cfg.Type == "" {
		return "none"
	}
	return cfg.Type
}
