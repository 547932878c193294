package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Account administration",
}

var (
	newUserName     string
	newUserEmail    string
	newUserPassword string
	newUserRole     string
)

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account with any role, e.g. the first admin",
	RunE: func(cmd *cobra.Command, _ []string) error {
		role, err := domain.ParseRole(newUserRole)
		if err != nil {
			return err
		}
		if newUserEmail == "" || newUserPassword == "" {
			return errors.New("--email and --password are required")
		}

		rt, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		authService := service.NewAuthService(*rt.cfg, service.AuthDependencies{UserRepo: rt.store.Users})
		user, err := authService.CreateUser(cmd.Context(), service.NewUserInput{
			Name:     newUserName,
			Email:    newUserEmail,
			Password: newUserPassword,
			Role:     role,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]any{"id": user.ID, "email": user.Email, "role": user.Role})
	},
}

func init() {
	usersCreateCmd.Flags().StringVar(&newUserName, "name", "", "display name")
	usersCreateCmd.Flags().StringVar(&newUserEmail, "email", "", "login email")
	usersCreateCmd.Flags().StringVar(&newUserPassword, "password", "", "initial password")
	usersCreateCmd.Flags().StringVar(&newUserRole, "role", string(domain.RoleUser), "user, helpdesk or admin")
	usersCmd.AddCommand(usersCreateCmd)
}
