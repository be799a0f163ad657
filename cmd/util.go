package cmd

import (
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/beavernet/beavernet/internal/config"
)

// RunHashPassword reads a password from the terminal and prints its bcrypt
// hash, for seeding a users file by hand.
func RunHashPassword() error {
	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}
	if len(password) == 0 {
		return fmt.Errorf("empty password")
	}

	hash, err := bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	fmt.Println(string(hash))
	return nil
}

// RunShowConfig prints the effective configuration as HCL.
func RunShowConfig(configFile string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}

	out, err := config.GenerateHCL(cfg)
	if err != nil {
		return err
	}

	os.Stdout.Write(out)
	return nil
}
