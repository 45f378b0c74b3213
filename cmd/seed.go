/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/campushub/apiserver/config"
	"github.com/campushub/apiserver/internal/crypto"
	"github.com/campushub/apiserver/internal/db"
	"github.com/campushub/apiserver/internal/services"
	"github.com/campushub/apiserver/internal/store"
	"github.com/campushub/apiserver/types"
	"github.com/spf13/cobra"
)

// seedCmd groups administrative provisioning commands. Accounts created here
// are active immediately and skip email verification.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Provision accounts and departments directly",
}

var (
	seedAdminEmail     string
	seedAdminPassword  string
	seedAdminFirstName string
	seedAdminLastName  string
)

var seedAdminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Create an active admin account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedAdminEmail == "" || seedAdminPassword == "" {
			return errors.New("--email and --password are required")
		}

		cfg := config.LoadConfig()
		dbConn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		hash, err := crypto.HashPassword(seedAdminPassword)
		if err != nil {
			return err
		}

		repo := store.NewUserRepository(dbConn)
		user, err := repo.Create(cmd.Context(), types.User{
			Email:        services.NormalizeEmail(seedAdminEmail),
			PasswordHash: hash,
			Role:         types.RoleAdmin,
			FirstName:    seedAdminFirstName,
			LastName:     seedAdminLastName,
			Active:       true,
		})
		if err != nil {
			return fmt.Errorf("create admin failed: %w", err)
		}

		fmt.Printf("created admin %s (id %d)\n", user.Email, user.ID)
		return nil
	},
}

var (
	seedDeptCode    string
	seedDeptName    string
	seedDeptFaculty string
)

var seedDepartmentCmd = &cobra.Command{
	Use:   "department",
	Short: "Create a department",
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedDeptCode == "" || seedDeptName == "" || seedDeptFaculty == "" {
			return errors.New("--code, --name, and --faculty are required")
		}

		cfg := config.LoadConfig()
		dbConn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		repo := store.NewDepartmentRepository(dbConn)
		dept, err := repo.Create(cmd.Context(), types.Department{
			Code:    seedDeptCode,
			Name:    seedDeptName,
			Faculty: seedDeptFaculty,
		})
		if err != nil {
			return fmt.Errorf("create department failed: %w", err)
		}

		fmt.Printf("created department %s (id %d)\n", dept.Code, dept.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.AddCommand(seedAdminCmd)
	seedCmd.AddCommand(seedDepartmentCmd)

	seedAdminCmd.Flags().StringVar(&seedAdminEmail, "email", "", "admin email address")
	seedAdminCmd.Flags().StringVar(&seedAdminPassword, "password", "", "admin password")
	seedAdminCmd.Flags().StringVar(&seedAdminFirstName, "first-name", "Admin", "admin first name")
	seedAdminCmd.Flags().StringVar(&seedAdminLastName, "last-name", "User", "admin last name")

	seedDepartmentCmd.Flags().StringVar(&seedDeptCode, "code", "", "department code")
	seedDepartmentCmd.Flags().StringVar(&seedDeptName, "name", "", "department name")
	seedDepartmentCmd.Flags().StringVar(&seedDeptFaculty, "faculty", "", "owning faculty or school")
}
