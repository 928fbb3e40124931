package components

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/abcfe/abcfe-keyring/internal/prompt/styles"
)

// LogViewer는 데몬 로그 파일의 마지막 몇 줄을 보여줌
type LogViewer struct {
	logPrefix   string
	lines       []LogLine
	maxLines    int
	lastModTime time.Time
	now         func() time.Time
}

// LogLine은 파싱된 로그 라인
type LogLine struct {
	Time    string
	Level   string
	Message string
	Raw     string
}

// NewLogViewer는 새 로그 뷰어 생성. logPrefix 는 config 의 LogInfo.Path
func NewLogViewer(logPrefix string, maxLines int) *LogViewer {
	return &LogViewer{
		logPrefix: logPrefix,
		maxLines:  maxLines,
		lines:     make([]LogLine, 0),
		now:       time.Now,
	}
}

// GetLogPath는 오늘 날짜의 로그 파일 경로 반환 (logger.InitLogger 와 같은 규칙)
func (lv *LogViewer) GetLogPath() string {
	return fmt.Sprintf("%s_%s.log", lv.logPrefix, lv.now().Format("2006-01-02"))
}

// Refresh는 로그 파일을 다시 읽음
func (lv *LogViewer) Refresh() error {
	logPath := lv.GetLogPath()

	info, err := os.Stat(logPath)
	if err != nil {
		lv.lines = []LogLine{{
			Level:   "INFO",
			Message: fmt.Sprintf("로그 파일 없음: %s", logPath),
		}}
		lv.lastModTime = time.Time{}
		return nil
	}

	// 수정 시간이 같으면 스킵
	if info.ModTime().Equal(lv.lastModTime) {
		return nil
	}
	lv.lastModTime = info.ModTime()

	file, err := os.Open(logPath)
	if err != nil {
		return err
	}
	defer file.Close()

	var allLines []LogLine
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		allLines = append(allLines, parseLine(scanner.Text()))
		// 마지막 maxLines만 유지
		if len(allLines) > lv.maxLines {
			allLines = allLines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	lv.lines = allLines
	return nil
}

type jsonLine struct {
	Date  string `json:"date"`
	Level string `json:"level"`
	Debug string `json:"Debug"`
	Info  string `json:"Info"`
	Warn  string `json:"Warn"`
	Err   string `json:"Err"`
}

// parseLine은 zap JSON 로그 라인을 파싱
// {"date":"2025-01-03T12:00:00.000Z","level":"INFO","logger":"abcfe-keyring","msg":"info","Info":"message"}
func parseLine(line string) LogLine {
	result := LogLine{Raw: line, Level: "INFO"}

	var jl jsonLine
	if err := json.Unmarshal([]byte(line), &jl); err != nil {
		result.Message = truncate(line, 80)
		return result
	}

	if jl.Level != "" {
		result.Level = jl.Level
	}
	if t, err := time.Parse("2006-01-02T15:04:05.000Z0700", jl.Date); err == nil {
		result.Time = t.Format("15:04:05")
	} else {
		result.Time = jl.Date
	}

	for _, msg := range []string{jl.Info, jl.Debug, jl.Warn, jl.Err} {
		if msg != "" {
			result.Message = msg
			break
		}
	}
	if result.Message == "" {
		result.Message = truncate(line, 80)
	}
	return result
}

func truncate(s string, n int) string {
	if n < 1 || len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// GetLines는 현재 로그 라인들 반환
func (lv *LogViewer) GetLines() []LogLine {
	return lv.lines
}

// Render는 로그 뷰어를 문자열로 렌더링
func (lv *LogViewer) Render(width int) string {
	var b strings.Builder

	b.WriteString(styles.HeaderStyle.Render("LOGS"))
	b.WriteString("\n")

	if len(lv.lines) == 0 {
		b.WriteString(styles.MutedStyle.Render("  로그가 없습니다"))
		return b.String()
	}

	maxMsgLen := width - 20
	if maxMsgLen < 20 {
		maxMsgLen = 20
	}

	for _, line := range lv.lines {
		timeStr := line.Time
		if timeStr == "" {
			timeStr = "        "
		}

		b.WriteString(fmt.Sprintf("  %s %s %s\n",
			styles.MutedStyle.Render(timeStr),
			styles.LogLevelStyle(line.Level).Render(fmt.Sprintf("%-5s", line.Level)),
			truncate(line.Message, maxMsgLen)))
	}

	return b.String()
}
