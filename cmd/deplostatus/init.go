package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"deplostatus/internal/config"
	"deplostatus/internal/preview"
	"deplostatus/internal/security"
	"deplostatus/pkg/fileutil"
	"deplostatus/pkg/templates"

	"github.com/spf13/cobra"
)

const serviceFileName = "deplostatus.service"

var (
	initDir        string
	initLogin      string
	initWorkflow   string
	initUser       string
	initGroup      string
	initWorkingDir string
	initBinary     string
	initForce      bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config and systemd unit",
	Long: `Write deplostatus.yaml with a freshly generated webhook secret and a
deplostatus.service systemd unit into --dir.

Existing files are left alone unless --force is given.`,
	Example: `  deplostatus init --login deploy-status[bot] --dir /etc/deplostatus`,
	RunE:    runInit,
}

func init() {
	initCmd.Flags().StringVar(&initDir, "dir", ".", "Directory to write the files into")
	initCmd.Flags().StringVar(&initLogin, "login", "", "Login of the bot account (required)")
	initCmd.Flags().StringVar(&initWorkflow, "workflow", preview.DefaultWorkflowFile, "Workflow file whose runs are tracked")
	initCmd.Flags().StringVar(&initUser, "user", "deplostatus", "User the service runs as")
	initCmd.Flags().StringVar(&initGroup, "group", "deplostatus", "Group the service runs as")
	initCmd.Flags().StringVar(&initWorkingDir, "working-dir", "/var/lib/deplostatus", "Service working directory (audit log lives here)")
	initCmd.Flags().StringVar(&initBinary, "binary", "/usr/local/bin/deplostatus", "Path to the installed binary")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing files")
	_ = initCmd.MarkFlagRequired("login")
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := security.ValidateWorkflowFile(initWorkflow); err != nil {
		return err
	}

	dir, err := filepath.Abs(initDir)
	if err != nil {
		return fmt.Errorf("invalid directory: %w", err)
	}

	secret, err := security.GenerateSecret()
	if err != nil {
		return err
	}

	cfgContent, err := templates.RenderConfig(templates.ConfigParams{
		WebhookSecret: secret,
		BotLogin:      initLogin,
		WorkflowFile:  initWorkflow,
		WorkingDir:    initWorkingDir,
	})
	if err != nil {
		return err
	}

	unitContent, err := templates.RenderSystemdService(templates.ServiceParams{
		User:       initUser,
		Group:      initGroup,
		WorkingDir: initWorkingDir,
		ConfigDir:  dir,
		Binary:     initBinary,
	})
	if err != nil {
		return err
	}

	if err := security.CreateSecureDir(dir, security.PermDirectory); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	files := []struct {
		name    string
		content string
		perm    os.FileMode
	}{
		{config.FileName, cfgContent, security.PermConfigFile},
		{serviceFileName, unitContent, 0644},
	}
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := writeNew(path, f.content, f.perm); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s\n", path)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintf(out, "  1. Set github.token (or github.app_id and github.private_key_path) in %s\n", filepath.Join(dir, config.FileName))
	fmt.Fprintf(out, "  2. sudo cp %s /etc/systemd/system/ && sudo systemctl enable --now deplostatus\n", filepath.Join(dir, serviceFileName))
	fmt.Fprintln(out, "  3. deplostatus hook --repo owner/name --url https://your-host")
	return nil
}

func writeNew(path, content string, perm os.FileMode) error {
	if fileutil.FileExists(path) && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return fmt.Errorf("cannot write %s: permission denied", path)
		}
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	// WriteFile keeps the mode of an existing file
	return os.Chmod(path, perm)
}
