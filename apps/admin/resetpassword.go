package main

import (
	"context"
)

func (cli *commandLine) resetPassword(login, pwd string) error {
	return cli.accounts.SetPassword(context.Background(), login, pwd)
}
