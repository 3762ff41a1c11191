package main

import (
	"context"
	"fmt"

	"github.com/practicas-ubb/practicas/core"
	"github.com/practicas-ubb/practicas/core/user"
)

// addUser updates or creates a staff user.User; existing users are enabled and get the new role & password.
func (cli *commandLine) addUser(name, email string, role user.Role, pwd string) error {
	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)

	if !role.Valid() || role == user.RoleStudent {
		return fmt.Errorf("invalid role %q: must be one of COORDINATION, EVALUATOR or SUPERVISOR", role)
	}

	now := core.Now()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	switch {
	case err == nil:
		if usr.IsStudent() {
			return fmt.Errorf("%s belongs to a student", email)
		}
	case core.IsNotFound(err):
		usr = user.User{Email: email, CreatedAt: now}
	default:
		return err
	}

	usr.Name = name
	usr.Role = role
	usr.Enabled = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	if usr.ID == 0 {
		usr, err = cli.usrRepo.CreateUser(ctx, usr)
	} else {
		usr, err = cli.usrRepo.UpdateUser(ctx, usr)
	}
	if err != nil {
		return err
	}
	logger.Printf("user %s (%s) saved\n", usr.Email, usr.Role)
	return nil
}
