package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/rollcall/core/attendance"
	"github.com/trezcool/rollcall/core/class"
	"github.com/trezcool/rollcall/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	usrSvc   *user.Service
	classSvc *class.Service
	registry *attendance.Registry
	out      io.Writer
	styled   bool // colored output, for terminals only
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  classes [-search TEXT] [-status active|inactive] - list classes")
	fmt.Fprintln(cli.out, "  rollcall -email EMAIL -class CODE [-photo PATH] [-submit] - take attendance from a photo or the camera")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	classesCmd := flag.NewFlagSet("classes", flag.ContinueOnError)
	classesCmd.SetOutput(cli.out)
	classesSearch := classesCmd.String("search", "", "Match on the class name, code or instructor.")
	classesStatus := classesCmd.String("status", "", "Only list classes with this status.")

	rollCallCmd := flag.NewFlagSet("rollcall", flag.ContinueOnError)
	rollCallCmd.SetOutput(cli.out)
	rollCallEmail := rollCallCmd.String("email", "", "The operator's email. The password will be prompted next.")
	rollCallClass := rollCallCmd.String("class", "", "The code of the class to take attendance for.")
	rollCallPhoto := rollCallCmd.String("photo", "", "A class photo. The camera is used when empty.")
	rollCallSubmit := rollCallCmd.Bool("submit", false, "Submit the results.")

	switch args[1] {
	case "classes":
		if err := classesCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.listClasses(class.QueryFilter{Search: *classesSearch, Status: *classesStatus})
	case "rollcall":
		if err := rollCallCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *rollCallEmail == "" || *rollCallClass == "" {
			rollCallCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			rollCallCmd.Usage()
			return errHelp
		}
		return cli.rollCall(rollCallOptions{
			email:     *rollCallEmail,
			password:  string(pwd),
			classCode: *rollCallClass,
			photo:     *rollCallPhoto,
			submit:    *rollCallSubmit,
		})
	default:
		cli.printUsage()
		return errHelp
	}
}
