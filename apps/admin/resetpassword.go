package main

import (
	"context"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/user"
)

func (cli *commandLine) resetPassword(ctx context.Context, uname, pwd string) error {
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = core.NowFunc()
	_, err = cli.usrRepo.UpdateUser(ctx, usr)
	return err
}
