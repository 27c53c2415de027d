package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/punch-kiosk/internal/database"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Inspect attendance records",
}

var attendanceStatusCmd = &cobra.Command{
	Use:   "status <employee-id>",
	Short: "Show today's punches and the next punch direction of an employee",
	Args:  cobra.ExactArgs(1),
	RunE:  runAttendanceStatus,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceStatusCmd)

	attendanceStatusCmd.Flags().Bool("json", false, "Output as JSON")
}

type attendanceStatus struct {
	EmpID   int                         `json:"emp_id"`
	Current database.Status             `json:"current"`
	Next    database.Status             `json:"next"`
	Today   []database.AttendanceRecord `json:"today"`
}

func runAttendanceStatus(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid employee id %q", args[0])
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	recorder := database.NewRecorder(backend, cfg.Device.ID)
	recorder.SetTimeout(cfg.Database.Timeout)
	today, err := recorder.Today(ctx, id)
	if err != nil {
		return fmt.Errorf("reading attendance: %w", err)
	}

	current := database.StatusOut
	if len(today) > 0 {
		current = today[len(today)-1].Status
	}
	status := attendanceStatus{EmpID: id, Current: current, Next: current.Next(), Today: today}

	if jsonOutput {
		return outputJSON(status)
	}

	fmt.Printf("Employee %d is %s, next punch records %s\n", id, status.Current, status.Next)
	if len(today) == 0 {
		fmt.Println("No punches today")
		return nil
	}
	fmt.Printf("\n%-10s %-5s %-8s %s\n", "TIME", "DIR", "DEVICE", "NAME")
	for _, rec := range today {
		fmt.Printf("%-10s %-5s %-8d %s\n", rec.Timestamp.Format("15:04:05"), rec.Status, rec.DeviceID, rec.Name)
	}
	return nil
}
