package main

import (
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/universidad/core/account"
	emailsvc "github.com/trezcool/universidad/services/email"
	"github.com/trezcool/universidad/testutil"
)

func setup(t *testing.T) (*commandLine, *testutil.Env) {
	env := testutil.NewEnv(t)
	return &commandLine{accounts: env.Accounts, campus: env.Campus}, env
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	var gotCommand string
	runMigrationsFunc = func(db *sqlx.DB, command string, args ...string) error {
		gotCommand = command
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			gotCommand = ""
			err := cli.run(append([]string{"admin"}, tt.args...))
			tt.check(t, err)
			if len(tt.args) > 1 {
				assert.Equal(t, tt.args[1], gotCommand)
			}
		})
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli, env := setup(t)
	existing := testutil.CreateUser(t, env.UserRepo, "Old Name", "old@uc.test", "0ld-Pa55word", nil, false)

	type extra struct {
		pwd       string
		login     string
		wantName  string
		wantAdmin bool
	}
	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no email", args: []string{"adduser", "-name", "Ana"}, extra: extra{pwd: "Pa55word"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-name", "Ana", "-email", "ana@uc.test"}, wantErr: errHelp},
		{
			name:  "create admin",
			args:  []string{"adduser", "-name", "Ana Diaz", "-email", "Ana@UC.test", "-admin"},
			extra: extra{pwd: "Pa55word-ana", login: "ana@uc.test", wantName: "Ana Diaz", wantAdmin: true},
		},
		{
			name:  "update existing",
			args:  []string{"adduser", "-name", "New Name", "-email", existing.Email},
			extra: extra{pwd: "N3w-Pa55word", login: existing.Login, wantName: "New Name"},
		},
	}
	for _, tt := range tests {
		tt := tt
		ex, _ := tt.extra.(extra)
		mockPassword(ex.pwd)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(append([]string{"admin"}, tt.args...))
			tt.check(t, err)
			if err != nil {
				return
			}

			usr, err := env.Accounts.GetByLogin(context.Background(), ex.login)
			require.NoError(t, err)
			assert.Equal(t, ex.wantName, usr.Name)
			assert.True(t, usr.IsActive)
			assert.Equal(t, ex.wantAdmin, usr.IsAdmin())
			assert.NoError(t, usr.CheckPassword(ex.pwd))
		})
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, env := setup(t)
	usr := testutil.CreateUser(t, env.UserRepo, "User", "awe@uc.test", "0ld-Pa55word", nil, true)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "login but no password", args: []string{"resetpassword", "-login", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-login", "lol"}, extra: "lol", wantErr: account.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-login", usr.Login}, extra: "N3w-Pa55word"},
		{name: "reset with mixed case login", args: []string{"resetpassword", "-login", "AWE@uc.test"}, extra: "lmao-Pa55word"},
	}
	for _, tt := range tests {
		tt := tt
		pwd, _ := tt.extra.(string)
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(append([]string{"admin"}, tt.args...))
			tt.check(t, err)
			if err != nil {
				return
			}

			refreshed, err := env.Accounts.Get(context.Background(), usr.ID)
			require.NoError(t, err)
			assert.NoError(t, refreshed.CheckPassword(pwd))
		})
	}
}

func Test_commandLine_sendReports(t *testing.T) {
	cli, env := setup(t)
	c := env.Populate(t)

	tests := []cliTest{
		{name: "no university", args: []string{"sendreports"}, wantErr: errHelp},
		{name: "invalid university", args: []string{"sendreports", "-university", "lol"}, wantErr: errHelp},
		{name: "unknown university", args: []string{"sendreports", "-university", "999"}, wantErrStr: "university not found"},
		{name: "send", args: []string{"sendreports", "-university", strconv.FormatInt(c.University.ID, 10)}, extra: 2},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			emailsvc.ResetSentMessages()

			err := cli.run(append([]string{"admin"}, tt.args...))
			tt.check(t, err)

			wantSent, _ := tt.extra.(int)
			assert.Len(t, emailsvc.SentMessages(), wantSent)
		})
	}
}
