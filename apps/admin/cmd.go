package main

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/universidad/core/account"
	"github.com/trezcool/universidad/core/campus"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sqlx.DB
	accounts *account.Service
	campus   *campus.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, version...)")
	fmt.Println("  adduser -name NAME -email EMAIL [-admin] - create or update an account")
	fmt.Println("  resetpassword -login LOGIN - reset an account's password")
	fmt.Println("  sendreports -university ID - mail their grade report to the students of a university")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserEmail := addUserCmd.String("email", "", "The user's email, also used as login. The password will be prompted next.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant every role to the user.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordLogin := resetPasswordCmd.String("login", "", "The user's login. The password will be prompted next.")

	sendReportsCmd := flag.NewFlagSet("sendreports", flag.ContinueOnError)
	sendReportsUni := sendReportsCmd.String("university", "", "The university ID.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserName == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserEmail, pwd, *addUserAdmin)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordLogin == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordLogin, pwd)

	case "sendreports":
		if err := sendReportsCmd.Parse(args[2:]); err != nil {
			return err
		}
		uniID, err := strconv.ParseInt(*sendReportsUni, 10, 64)
		if err != nil || uniID <= 0 {
			sendReportsCmd.Usage()
			return errHelp
		}
		return cli.sendReports(uniID)

	default:
		cli.printUsage()
		return errHelp
	}
}

func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
