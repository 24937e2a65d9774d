package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/edusys/core"
	"github.com/trezcool/edusys/core/user"
)

var cliRoles = map[string][]string{
	"admin":   {user.RoleAdminOwner},
	"teacher": {user.RoleTeacher},
	"student": {user.RoleStudent},
}

func knownRole(role, paramName string) vala.Checker {
	return func() (bool, string) {
		_, ok := cliRoles[role]
		return ok, fmt.Sprintf("Parameter is not a known role: %s (%q)", paramName, role)
	}
}

// addUser updates or creates an active user.User with the given role.
func (cli *commandLine) addUser(name, uname, email, pwd, role string) error {
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	role = core.CleanString(role, true /* lower */)

	err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(uname, "username"),
		vala.StringNotEmpty(email, "email"),
		knownRole(role, "role"),
	).Check()
	if err != nil {
		return err
	}

	ctx := context.Background()
	now := time.Now().UTC()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{uname, email}})
	exists := err == nil
	if err != nil {
		if !core.IsNotFound(err) {
			return err
		}
		usr = user.User{ID: uuid.NewString(), Username: uname, Email: email, CreatedAt: now}
	}

	if name = core.CleanString(name); name != "" {
		usr.Name = name
	} else if usr.Name == "" {
		usr.Name = uname
	}
	usr.Roles = cliRoles[role]
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}

	if exists {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "user %q saved\n", usr.Username)
	return nil
}
