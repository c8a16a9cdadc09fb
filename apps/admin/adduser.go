package main

import (
	"context"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/user"
)

var roleSets = map[string][]string{
	"admin":   user.AdminRoles,
	"teacher": user.TeacherRoles,
	"student": user.StudentRoles,
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(ctx context.Context, name, uname, email, pwd string, roles []string) (user.User, error) {
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: uname})
	if err != nil {
		if !core.IsNotFound(err) {
			return user.User{}, err
		}
		now := core.NowFunc()
		usr = user.User{Username: uname, CreatedAt: now}
	}
	if name = core.CleanString(name); name != "" {
		usr.Name = name
	}
	if email != "" {
		usr.Email = email
	}
	usr.Roles = roles
	usr.IsActive = true
	usr.UpdatedAt = core.NowFunc()
	if err = usr.SetPassword(pwd); err != nil {
		return user.User{}, err
	}
	return cli.usrRepo.UpdateOrCreateUser(ctx, usr)
}
