package cli

import (
	"fmt"

	"github.com/smartlearnhub/slh/internal/ops"
	"github.com/smartlearnhub/slh/internal/session"
	"github.com/spf13/cobra"
)

func newRegisterCmd() *cobra.Command {
	var f session.RegistrationFields
	var role string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a student or teacher account",
		Long: `Create a SmartLearn Hub account. Missing fields are prompted for.

Students provide a parent's contact and standard; teachers provide a subject.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Role = session.Role(role)
			return runRegister(cmd, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.FullName, "name", "", "full name")
	fl.StringVar(&f.Email, "email", "", "account email")
	fl.StringVar(&role, "role", "", "student or teacher")
	fl.StringVar(&f.School, "school", "", "school")
	fl.StringVar(&f.City, "city", "", "city")
	fl.StringVar(&f.ParentContact, "parent-contact", "", "parent's contact (students)")
	fl.StringVar(&f.Standard, "standard", "", "standard (students)")
	fl.StringVar(&f.Subject, "subject", "", "subject (teachers)")
	return cmd
}

func runRegister(cmd *cobra.Command, f session.RegistrationFields) error {
	out := cmd.OutOrStdout()
	pr := newPrompter(cmd.InOrStdin(), out)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "=== SmartLearn Hub — Create Account ===")
	fmt.Fprintln(out)

	form, err := collectRegistration(pr, f)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintln(out)
	if _, err := a.auth.Register(cmd.Context(), form, printProgress(out)); err != nil {
		return noticeError(err)
	}
	renderHome(out, a.auth.State().Get())
	return nil
}

func collectRegistration(pr *prompter, f session.RegistrationFields) (ops.RegisterForm, error) {
	var err error
	ask := func(label string, dst *string) {
		if err == nil {
			*dst, err = pr.Line(label, *dst)
		}
	}

	role := string(f.Role)
	ask("Role (student/teacher)", &role)
	if err != nil {
		return ops.RegisterForm{}, err
	}
	r, err := session.ParseRole(role)
	if err != nil {
		return ops.RegisterForm{}, err
	}
	f.Role = r

	ask("Full name", &f.FullName)
	ask("Email", &f.Email)
	ask("School", &f.School)
	ask("City", &f.City)
	if f.Role == session.RoleStudent {
		ask("Parent's contact", &f.ParentContact)
		ask("Standard", &f.Standard)
	} else {
		ask("Subject", &f.Subject)
	}
	if err != nil {
		return ops.RegisterForm{}, err
	}

	form := ops.RegisterForm{RegistrationFields: f}
	if form.Password, err = pr.Secret("Password"); err != nil {
		return ops.RegisterForm{}, err
	}
	if form.ConfirmPassword, err = pr.Secret("Confirm password"); err != nil {
		return ops.RegisterForm{}, err
	}
	return form, nil
}
