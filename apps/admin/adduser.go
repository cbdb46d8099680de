package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/universidad/core"
	"github.com/trezcool/universidad/core/account"
)

// addUser creates the account of email, or updates it when it exists. The account is activated.
func (cli *commandLine) addUser(name, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	var roles []string
	if isAdmin {
		roles = account.AllRoles
	}

	usr, err := cli.accounts.GetByLogin(ctx, email)
	if err != nil {
		if !core.IsNotFound(err) {
			return errors.Wrap(err, "finding user")
		}
		_, err = cli.accounts.Create(ctx, account.NewUser{
			Name:     name,
			Email:    email,
			Password: pwd,
			Roles:    roles,
		})
		return err
	}

	active := true
	_, err = cli.accounts.Update(ctx, usr, account.UpdateUser{
		Name:     name,
		Email:    usr.Email,
		IsActive: &active,
		Roles:    roles,
		Password: pwd,
	})
	return err
}
