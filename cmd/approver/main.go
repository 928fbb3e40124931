package main

import (
	"fmt"
	"os"

	"github.com/abcfe/abcfe-keyring/internal/prompt"
	"github.com/spf13/cobra"
)

var (
	Version   = "1.0.0"
	BuildTime = "unknown"

	host      string
	port      int
	logPrefix string
	refresh   int
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "abcfe-approver",
		Short: "ABCFe keyring 승인 프롬프트",
		Long: `ABCFe Approver - keyring 승인 요청 TUI

대기 중인 unlock / tx-config / sign 요청을 보여주고 승인 또는 거절합니다.

사용 예시:
  abcfe-approver                            # 127.0.0.1:8100 의 keyring
  abcfe-approver --port 8200                # 다른 포트
  abcfe-approver --log-dir ./log/syslogs/   # 같은 화면에 데몬 로그 표시`,
		Run: func(cmd *cobra.Command, args []string) {
			runApprover()
		},
	}

	rootCmd.Flags().StringVar(&host, "host", "127.0.0.1", "keyring 호스트 주소")
	rootCmd.Flags().IntVar(&port, "port", 8100, "keyring REST 포트")
	rootCmd.Flags().StringVar(&logPrefix, "log-dir", "./log/syslogs/", "데몬 로그 경로 접두사")
	rootCmd.Flags().IntVar(&refresh, "refresh", 1, "새로고침 간격 (초)")

	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "버전 정보 출력",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ABCFe Approver v%s (built: %s)\n", Version, BuildTime)
		},
	}
}

func runApprover() {
	if host != "127.0.0.1" && host != "localhost" && host != "::1" {
		// 승인 API 는 로컬 요청만 받음
		fmt.Println("Warning: keyring only accepts approvals from the local host")
	}

	config := prompt.Config{
		Host:       host,
		Port:       port,
		LogPrefix:  logPrefix,
		RefreshSec: refresh,
	}

	if err := prompt.Run(config); err != nil {
		fmt.Printf("Approver error: %v\n", err)
		os.Exit(1)
	}
}
