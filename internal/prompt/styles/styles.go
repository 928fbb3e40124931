package styles

import "github.com/charmbracelet/lipgloss"

var (
	// 색상 정의
	Primary   = lipgloss.Color("#04B575")
	Secondary = lipgloss.Color("#3C3C3C")
	Success   = lipgloss.Color("#04B575")
	Warning   = lipgloss.Color("#FFCC00")
	Error     = lipgloss.Color("#FF5F56")
	Muted     = lipgloss.Color("#626262")
	White     = lipgloss.Color("#FFFFFF")
	Cyan      = lipgloss.Color("#00CED1")

	// 키 상태별 색상
	StatusColors = map[string]lipgloss.Color{
		"NOT_LOADED": Muted,
		"EMPTY":      Muted,
		"LOCKED":     Warning,
		"UNLOCKED":   Success,
	}

	// 승인 종류별 색상
	KindColors = map[string]lipgloss.Color{
		"unlock":    Warning,
		"tx-config": Cyan,
		"sign":      lipgloss.Color("#FFA500"),
	}

	// 로그 레벨별 색상
	LogLevelColors = map[string]lipgloss.Color{
		"DEBUG": Muted,
		"INFO":  Cyan,
		"WARN":  Warning,
		"ERROR": Error,
	}

	// 기본 스타일
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(White).
			Background(Primary).
			Padding(0, 1)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary).
			MarginBottom(1)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Secondary).
			Padding(0, 1)

	MutedStyle = lipgloss.NewStyle().
			Foreground(Muted)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error)

	// 테이블 스타일
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(White).
				Background(Secondary).
				Padding(0, 1)

	TableRowStyle = lipgloss.NewStyle().
			Padding(0, 1)

	TableSelectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(White).
				Background(Primary).
				Padding(0, 1)

	// 도움말 바 스타일
	HelpKeyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary)

	HelpDescStyle = lipgloss.NewStyle().
			Foreground(Muted)

	HelpBarStyle = lipgloss.NewStyle().
			Foreground(Muted).
			MarginTop(1)
)

func colorStyle(colors map[string]lipgloss.Color, key string, fallback lipgloss.Color) lipgloss.Style {
	color, ok := colors[key]
	if !ok {
		color = fallback
	}
	return lipgloss.NewStyle().Foreground(color)
}

// StatusStyle 키 상태에 맞는 스타일 반환
func StatusStyle(status string) lipgloss.Style {
	return colorStyle(StatusColors, status, Muted)
}

// KindStyle 승인 종류에 맞는 스타일 반환
func KindStyle(kind string) lipgloss.Style {
	return colorStyle(KindColors, kind, White)
}

// LogLevelStyle 로그 레벨에 맞는 스타일 반환
func LogLevelStyle(level string) lipgloss.Style {
	return colorStyle(LogLevelColors, level, White)
}
