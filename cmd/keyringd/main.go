package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/abcfe/abcfe-keyring/app"
	"github.com/abcfe/abcfe-keyring/common/logger"
	conf "github.com/abcfe/abcfe-keyring/config"
	promptapi "github.com/abcfe/abcfe-keyring/internal/prompt/api"
	"github.com/abcfe/abcfe-keyring/keystore"
	"github.com/abcfe/abcfe-keyring/storage"
	"github.com/spf13/cobra"
)

// Version info (Injected from Makefile)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const daemonChildEnv = "ABCFE_KEYRING_DAEMON_CHILD"

// PID file management - Use user home directory
func getPidFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./keyringd.pid"
	}
	return filepath.Join(homeDir, ".abcfe-keyring", "keyringd.pid")
}

var (
	pidFile    = getPidFilePath()
	configFile string
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "keyringd",
		Short: "ABCFe keyring daemon",
		Long: `ABCFe keyring daemon. Holds one BIP-39 master secret encrypted at rest,
derives per-chain secp256k1 keys and signs only after local approval.`,
		Run: func(cmd *cobra.Command, args []string) {
			runKeyring()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(daemonCmd())
	rootCmd.AddCommand(keyCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println("Failed to execute command:", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("keyringd %s (built: %s)\n", Version, BuildTime)
		},
	}
}

func daemonCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "daemon",
		Short: "Daemon management commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Start the keyring as daemon",
		Run: func(cmd *cobra.Command, args []string) {
			runDaemon(pidFile)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "Stop the keyring daemon",
		Run: func(cmd *cobra.Command, args []string) {
			stopDaemon(pidFile)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show daemon and keyring status",
		Run: func(cmd *cobra.Command, args []string) {
			showStatus(pidFile)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "restart",
		Short: "Restart the keyring daemon",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Restarting keyring...")
			stopDaemon(pidFile)
			time.Sleep(2 * time.Second)
			runDaemon(pidFile)
		},
	})

	return cmd
}

func runKeyring() {
	application, err := app.New(configFile)
	if err != nil {
		fmt.Println("Failed to initialize application:", err)
		os.Exit(1)
	}

	application.SigHandler()
	logger.Info("Keyring start.")

	if err := application.StartAll(); err != nil {
		logger.Error("Failed to start services:", err)
		application.Terminate()
		os.Exit(1)
	}

	application.Wait()
	if os.Getenv(daemonChildEnv) == "1" {
		removePidFile(pidFile)
	}
	logger.Info("Keyring terminated.")
}

func runDaemon(pidFilePath string) {
	// Check internal execution via env var (prevent infinite recursion)
	if os.Getenv(daemonChildEnv) == "1" {
		runKeyring()
		return
	}

	if isRunning(pidFilePath) {
		fmt.Println("Keyring is already running")
		return
	}

	executable, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}

	args := []string{"daemon", "start"}
	if configFile != "" {
		args = append(args, "--config", configFile)
	}
	cmd := exec.Command(executable, args...)
	cmd.Env = append(os.Environ(), daemonChildEnv+"=1")
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	if err := cmd.Start(); err != nil {
		fmt.Printf("Failed to start daemon: %v\n", err)
		os.Exit(1)
	}

	if err := writePidFile(pidFilePath, cmd.Process.Pid); err != nil {
		fmt.Printf("Failed to write PID file: %v\n", err)
		cmd.Process.Kill()
		os.Exit(1)
	}

	fmt.Printf("Keyring started as daemon with PID %d\n", cmd.Process.Pid)
	os.Exit(0)
}

func stopDaemon(pidFilePath string) {
	pid, err := readPidFile(pidFilePath)
	if err != nil {
		fmt.Println("Keyring is not running or PID file not found")
		return
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		fmt.Println("Process not found")
		removePidFile(pidFilePath)
		return
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		fmt.Printf("Failed to stop process: %v\n", err)
		return
	}

	fmt.Printf("Stopping keyring (PID: %d)...\n", pid)
	removePidFile(pidFilePath)
}

func showStatus(pidFilePath string) {
	fmt.Printf("PID file path: %s\n", pidFilePath)

	if isRunning(pidFilePath) {
		pid, _ := readPidFile(pidFilePath)
		fmt.Printf("Keyring daemon is running (PID: %d)\n", pid)
	} else if _, err := os.Stat(pidFilePath); err == nil {
		fmt.Println("PID file exists but process is not running - cleaning up")
		removePidFile(pidFilePath)
	}

	cfg, err := conf.NewConfig(configFile)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}
	client := promptapi.NewClient(cfg.Server.Host, cfg.Server.RestPort)
	status, err := client.GetStatus()
	if err != nil {
		fmt.Printf("Keyring API not reachable at %s:%d\n", cfg.Server.Host, cfg.Server.RestPort)
		return
	}
	fmt.Printf("Keyring status: %s\n", status.Status)
	if status.Path != "" {
		fmt.Printf("Current path: %s (%s)\n", status.Path, status.ChainID)
	}
}

func isRunning(pidFilePath string) bool {
	pid, err := readPidFile(pidFilePath)
	if err != nil {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// signal 0 checks liveness (Unix/Linux)
	return process.Signal(syscall.Signal(0)) == nil
}

func readPidFile(pidFilePath string) (int, error) {
	data, err := os.ReadFile(pidFilePath)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func writePidFile(pidFilePath string, pid int) error {
	if err := os.MkdirAll(filepath.Dir(pidFilePath), 0700); err != nil {
		return err
	}
	return os.WriteFile(pidFilePath, []byte(strconv.Itoa(pid)), 0600)
}

func removePidFile(pidFilePath string) {
	os.Remove(pidFilePath)
}

func keyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Offline key material commands",
		Long:  `Commands that operate on the key database directly. Stop the daemon first; LevelDB allows a single opener.`,
	}

	cmd.AddCommand(keyNewMnemonicCmd())
	cmd.AddCommand(keyCreateCmd())
	cmd.AddCommand(keyInfoCmd())
	cmd.AddCommand(keyClearCmd())
	return cmd
}

func keyNewMnemonicCmd() *cobra.Command {
	var bits int
	cmd := &cobra.Command{
		Use:   "new-mnemonic",
		Short: "Generate a fresh BIP-39 mnemonic",
		RunE: func(cmd *cobra.Command, args []string) error {
			mnemonic, err := keystore.NewMnemonic(bits)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "WARNING: Never share your mnemonic with anyone!")
			fmt.Fprintln(cmd.OutOrStdout(), mnemonic)
			return nil
		},
	}
	cmd.Flags().IntVar(&bits, "bits", 128, "Entropy bits (128 = 12 words, 256 = 24 words)")
	return cmd
}

func keyCreateCmd() *cobra.Command {
	var (
		mnemonic string
		generate bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Encrypt a mnemonic under a password and store it",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			if generate {
				m, err := keystore.NewMnemonic(128)
				if err != nil {
					return err
				}
				mnemonic = m
				fmt.Fprintln(out, "IMPORTANT: Write down your mnemonic phrase and keep it safe!")
				fmt.Fprintf(out, "Mnemonic: %s\n\n", mnemonic)
			} else if mnemonic == "" {
				m, err := readLine(in, out, "Mnemonic: ")
				if err != nil {
					return err
				}
				mnemonic = m
			}

			password, err := readLine(in, out, "Password: ")
			if err != nil {
				return err
			}
			confirm, err := readLine(in, out, "Confirm password: ")
			if err != nil {
				return err
			}
			if password != confirm {
				return fmt.Errorf("passwords do not match")
			}

			return withKeyStore(func(ks *keystore.KeyStore) error {
				if err := ks.Create(mnemonic, password); err != nil {
					return err
				}
				fmt.Fprintln(out, "Key created. Status:", ks.Status())
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&mnemonic, "mnemonic", "m", "", "Mnemonic phrase to import (prompted when empty)")
	cmd.Flags().BoolVar(&generate, "generate", false, "Generate a new 12 word mnemonic")
	return cmd
}

func keyInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show stored key status and KDF parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKeyStore(func(ks *keystore.KeyStore) error {
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Status:", ks.Status())
				if p, ok := ks.KDFParams(); ok {
					fmt.Fprintf(out, "KDF: scrypt n=%d r=%d p=%d dklen=%d\n", p.N, p.R, p.P, p.DkLen)
				}
				return nil
			})
		},
	}
}

func keyClearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Irreversibly delete the stored key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete key material without --yes")
			}
			return withKeyStore(func(ks *keystore.KeyStore) error {
				if err := ks.Clear(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Key material cleared")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	return cmd
}

func withKeyStore(fn func(ks *keystore.KeyStore) error) error {
	cfg, err := conf.NewConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := storage.InitDB(cfg)
	if err != nil {
		return fmt.Errorf("failed to open key db (is the daemon running?): %w", err)
	}
	defer db.Close()

	ks := keystore.New(db, keystore.WithScryptParams(cfg.Keystore.ScryptN, cfg.Keystore.ScryptP))
	if _, err := ks.Restore(); err != nil {
		return err
	}
	defer ks.Lock()
	return fn(ks)
}

func readLine(in *bufio.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
