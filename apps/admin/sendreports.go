package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) sendReports(universityID int64) error {
	sent, err := cli.campus.SendUniversityReports(context.Background(), universityID)
	if err != nil {
		return err
	}
	fmt.Printf("%d report(s) sent\n", sent)
	return nil
}
