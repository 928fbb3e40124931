// Package prompt is the terminal approval window. It lists the requests the
// keyring daemon is waiting on and lets the user approve or reject them.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/abcfe/abcfe-keyring/internal/prompt/api"
	"github.com/abcfe/abcfe-keyring/internal/prompt/components"
	"github.com/abcfe/abcfe-keyring/internal/prompt/styles"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	KindUnlock   = "unlock"
	KindTxConfig = "tx-config"
	KindSign     = "sign"
)

// Config는 승인 창 설정
type Config struct {
	Host       string
	Port       int
	LogPrefix  string
	RefreshSec int
}

// Item은 대기 중인 승인 요청 하나
type Item struct {
	Kind string
	ID   string
}

func (i Item) key() string {
	return i.Kind + "/" + i.ID
}

// Model은 Bubbletea 모델
type Model struct {
	config    Config
	client    *api.Client
	status    *api.Status
	items     []Item
	selected  int
	detail    string
	detailKey string
	online    bool
	lastErr   string
	notice    string
	password  textinput.Model
	unlocking bool
	width     int
	height    int
	logViewer *components.LogViewer
	showHelp  bool
	quitting  bool
}

// Run은 승인 창 실행
func Run(config Config) error {
	m := NewModel(config, api.NewClient(config.Host, config.Port))
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func NewModel(config Config, client *api.Client) Model {
	if config.RefreshSec < 1 {
		config.RefreshSec = 1
	}

	ti := textinput.New()
	ti.Placeholder = "password"
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	ti.CharLimit = 256

	return Model{
		config:    config,
		client:    client,
		password:  ti,
		logViewer: components.NewLogViewer(config.LogPrefix, 8),
	}
}

// tickMsg는 주기적 업데이트 메시지
type tickMsg time.Time

type refreshMsg struct {
	status    *api.Status
	approvals *api.Approvals
	err       error
}

type detailMsg struct {
	key  string
	text string
	err  error
}

type actionMsg struct {
	notice string
	err    error
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(m.config.RefreshSec),
		m.refresh(),
	)
}

func tickCmd(seconds int) tea.Cmd {
	return tea.Tick(time.Duration(seconds)*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) refresh() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		status, err := client.GetStatus()
		if err != nil {
			return refreshMsg{err: err}
		}
		approvals, err := client.GetApprovals()
		return refreshMsg{status: status, approvals: approvals, err: err}
	}
}

func (m Model) fetchDetail(item Item) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		switch item.Kind {
		case KindUnlock:
			return detailMsg{key: item.key(), text: "키 잠금 해제 요청. a 를 눌러 비밀번호 입력"}

		case KindSign:
			req, err := client.GetSignRequest(item.ID)
			if err != nil {
				return detailMsg{key: item.key(), err: err}
			}
			msg := req.MessageText
			if msg == "" {
				msg = "0x" + req.Message
			}
			return detailMsg{key: item.key(), text: fmt.Sprintf("Chain: %s\nMessage:\n%s", req.ChainID, msg)}

		case KindTxConfig:
			req, err := client.GetTxConfig(item.ID)
			if err != nil {
				return detailMsg{key: item.key(), err: err}
			}
			c := req.Config
			return detailMsg{key: item.key(), text: fmt.Sprintf(
				"Chain: %s\nAccount: %d  Sequence: %d\nGas: %d  Fee: %s\nMemo: %s",
				c.ChainID, c.AccountNumber, c.Sequence, c.Gas, c.Fee, c.Memo)}
		}
		return detailMsg{key: item.key(), err: fmt.Errorf("unknown kind %s", item.Kind)}
	}
}

func (m Model) approve(item Item) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		var resolved bool
		var err error
		switch item.Kind {
		case KindSign:
			resolved, err = client.ApproveSign(item.ID)
		case KindTxConfig:
			resolved, err = client.ApproveTxConfig(item.ID, nil)
		}
		return resolvedNotice("승인", item, resolved, err)
	}
}

func (m Model) reject(item Item) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		var resolved bool
		var err error
		switch item.Kind {
		case KindUnlock:
			err = client.RejectUnlock()
			resolved = err == nil
		case KindSign:
			resolved, err = client.RejectSign(item.ID)
		case KindTxConfig:
			resolved, err = client.RejectTxConfig(item.ID)
		}
		return resolvedNotice("거절", item, resolved, err)
	}
}

func (m Model) unlock(password string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		if err := client.Unlock(password); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{notice: "잠금 해제됨"}
	}
}

func resolvedNotice(action string, item Item, resolved bool, err error) actionMsg {
	if err != nil {
		return actionMsg{err: err}
	}
	if !resolved {
		return actionMsg{notice: fmt.Sprintf("%s %s: 이미 처리되었거나 만료됨", item.Kind, item.ID)}
	}
	return actionMsg{notice: fmt.Sprintf("%s %s %s", item.Kind, item.ID, action)}
}

// flatten은 unlock, tx-config, sign 순으로 정렬된 목록을 만듦
func flatten(a *api.Approvals) []Item {
	if a == nil {
		return nil
	}
	var items []Item
	for _, id := range a.Unlock {
		items = append(items, Item{Kind: KindUnlock, ID: id})
	}
	for _, id := range a.TxConfig {
		items = append(items, Item{Kind: KindTxConfig, ID: id})
	}
	for _, id := range a.Sign {
		items = append(items, Item{Kind: KindSign, ID: id})
	}
	return items
}

func (m Model) current() (Item, bool) {
	if m.selected < 0 || m.selected >= len(m.items) {
		return Item{}, false
	}
	return m.items[m.selected], true
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.unlocking {
			return m.updatePassword(msg)
		}

		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "?":
			m.showHelp = !m.showHelp

		case "r":
			return m, m.refresh()

		case "up", "k":
			if m.selected > 0 {
				m.selected--
				cmds = append(cmds, m.selectionChanged())
			}

		case "down", "j":
			if m.selected < len(m.items)-1 {
				m.selected++
				cmds = append(cmds, m.selectionChanged())
			}

		case "a", "enter":
			item, ok := m.current()
			if !ok {
				break
			}
			if item.Kind == KindUnlock {
				m.unlocking = true
				m.password.SetValue("")
				cmd := m.password.Focus()
				return m, cmd
			}
			cmds = append(cmds, m.approve(item))

		case "x":
			if item, ok := m.current(); ok {
				cmds = append(cmds, m.reject(item))
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		cmds = append(cmds, tickCmd(m.config.RefreshSec))
		cmds = append(cmds, m.refresh())
		m.logViewer.Refresh()

	case refreshMsg:
		if msg.err != nil {
			m.online = false
			m.lastErr = msg.err.Error()
			break
		}
		m.online = true
		m.lastErr = ""
		m.status = msg.status
		cmds = append(cmds, m.setItems(flatten(msg.approvals)))

	case detailMsg:
		if item, ok := m.current(); ok && item.key() == msg.key {
			m.detailKey = msg.key
			if msg.err != nil {
				m.detail = styles.ErrorStyle.Render(msg.err.Error())
			} else {
				m.detail = msg.text
			}
		}

	case actionMsg:
		if msg.err != nil {
			m.notice = styles.ErrorStyle.Render(msg.err.Error())
		} else {
			m.notice = styles.SuccessStyle.Render(msg.notice)
		}
		cmds = append(cmds, m.refresh())
	}

	return m, tea.Batch(cmds...)
}

func (m Model) updatePassword(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.unlocking = false
		m.password.Blur()
		m.password.SetValue("")
		return m, nil

	case tea.KeyEnter:
		password := m.password.Value()
		m.unlocking = false
		m.password.Blur()
		m.password.SetValue("")
		return m, m.unlock(password)

	case tea.KeyCtrlC:
		m.quitting = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.password, cmd = m.password.Update(msg)
	return m, cmd
}

// setItems는 선택을 유지하면서 목록을 교체
func (m *Model) setItems(items []Item) tea.Cmd {
	prev, hadPrev := m.current()
	m.items = items
	m.selected = 0
	if hadPrev {
		for i, it := range items {
			if it == prev {
				m.selected = i
				break
			}
		}
	}
	return m.selectionChanged()
}

func (m *Model) selectionChanged() tea.Cmd {
	item, ok := m.current()
	if !ok {
		m.detail = ""
		m.detailKey = ""
		return nil
	}
	if item.key() != m.detailKey {
		m.detail = styles.MutedStyle.Render("불러오는 중...")
	}
	return m.fetchDetail(item)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	b.WriteString(m.renderTable())
	b.WriteString("\n")

	if item, ok := m.current(); ok {
		b.WriteString(m.renderDetail(item))
		b.WriteString("\n")
	}

	if m.unlocking {
		b.WriteString(styles.BoxStyle.Render("비밀번호: " + m.password.View()))
		b.WriteString("\n")
	}

	if m.notice != "" {
		b.WriteString(m.notice)
		b.WriteString("\n")
	}

	b.WriteString(m.logViewer.Render(m.width))
	b.WriteString("\n")

	if m.showHelp {
		b.WriteString(m.renderFullHelp())
	} else {
		b.WriteString(m.renderHelpBar())
	}

	return b.String()
}

func (m Model) renderHeader() string {
	title := styles.TitleStyle.Render(" ABCFe Keyring Approver ")

	var statusText string
	switch {
	case !m.online:
		statusText = styles.ErrorStyle.Render("오프라인 " + m.lastErr)
	case m.status != nil:
		statusText = styles.StatusStyle(m.status.Status).Render(m.status.Status)
		if m.status.ChainID != "" {
			statusText += styles.MutedStyle.Render(fmt.Sprintf(" | %s %s", m.status.ChainID, m.status.Path))
		}
	}

	gap := m.width - lipgloss.Width(title) - lipgloss.Width(statusText) - 2
	if gap < 1 {
		gap = 1
	}
	return title + strings.Repeat(" ", gap) + statusText
}

func (m Model) renderTable() string {
	var b strings.Builder

	header := fmt.Sprintf("%-4s %-10s %-40s", "#", "Kind", "Request ID")
	b.WriteString(styles.TableHeaderStyle.Render(header))
	b.WriteString("\n")

	if len(m.items) == 0 {
		b.WriteString(styles.MutedStyle.Render("  대기 중인 요청 없음"))
		b.WriteString("\n")
		return b.String()
	}

	for i, item := range m.items {
		row := fmt.Sprintf("%-4d %-10s %-40s", i+1, item.Kind, item.ID)
		if i == m.selected {
			b.WriteString(styles.TableSelectedRowStyle.Render(row))
		} else {
			b.WriteString(styles.TableRowStyle.Render(row))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderDetail(item Item) string {
	title := styles.KindStyle(item.Kind).Render(fmt.Sprintf("%s %s", item.Kind, item.ID))
	return styles.BoxStyle.Render(title + "\n" + m.detail)
}

func (m Model) renderHelpBar() string {
	keys := []struct{ key, desc string }{
		{"↑↓", "선택"},
		{"a", "승인"},
		{"x", "거절"},
		{"r", "새로고침"},
		{"?", "도움말"},
		{"q", "종료"},
	}

	var parts []string
	for _, k := range keys {
		parts = append(parts,
			styles.HelpKeyStyle.Render(k.key)+
				styles.HelpDescStyle.Render(" "+k.desc))
	}

	return styles.HelpBarStyle.Render(strings.Join(parts, "  │  "))
}

func (m Model) renderFullHelp() string {
	help := `
╭─────────────────────────────────────╮
│            도움말                    │
├─────────────────────────────────────┤
│  ↑/↓, j/k    요청 선택 이동          │
│  a, Enter    승인 (unlock: 비밀번호) │
│  x           거절                   │
│  Esc         비밀번호 입력 취소      │
│  r           수동 새로고침           │
│  q, Ctrl+C   종료                   │
╰─────────────────────────────────────╯`
	return styles.MutedStyle.Render(help)
}
