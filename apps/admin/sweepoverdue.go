package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) sweepOverdue() error {
	n, outcome, err := cli.taskSvc.SweepOverdue(context.Background(), nowFunc())
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d assignment(s) marked overdue\n", n)
	if !outcome.OK() {
		fmt.Fprintln(cli.out, outcome.Warning())
	}
	return nil
}
