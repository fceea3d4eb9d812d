package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/class"
)

// listClasses prints the classes matching filter, ordered by code.
func (cli *commandLine) listClasses(filter class.QueryFilter) error {
	classes, err := cli.classSvc.Filter(filter, core.Ordering{Field: "code", Ascending: true})
	if err != nil {
		return err
	}
	if len(classes) == 0 {
		fmt.Fprintln(cli.out, cli.notice("no classes found"))
		return nil
	}

	rows := make([][]string, 0, len(classes))
	for _, c := range classes {
		rows = append(rows, []string{
			strconv.Itoa(c.ID), c.Code, c.Name, c.Instructor, c.Schedule, c.Room,
			strconv.Itoa(c.TotalStudents), c.Status,
		})
	}
	tbl := cli.renderTable(
		[]string{"ID", "CODE", "NAME", "INSTRUCTOR", "SCHEDULE", "ROOM", "STUDENTS", "STATUS"},
		rows,
		func(row, col int) (lipgloss.Color, bool) {
			return colorMuted, col == 7 && classes[row].Status != class.StatusActive
		},
	)
	fmt.Fprintln(cli.out, tbl)
	return nil
}
