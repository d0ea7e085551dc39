package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/auticonnect/internal/mediator"
	"github.com/user/auticonnect/internal/state"
	"github.com/user/auticonnect/internal/types"
)

const maxTelegramMessage = 4096

// AlertAcker applies alert status transitions reported from chat commands.
type AlertAcker interface {
	HandleStatus(ctx context.Context, id types.AlertID, status types.AlertStatus, by types.ParticipantID) error
}

// Adapter bridges Telegram to the mediation queue. Group chats map to
// groups, direct chats to private support conversations. Telegram numeric
// IDs are used verbatim as group and participant IDs, so the adapter can
// address any stored ID without a mapping table. It implements
// types.Transport.
type Adapter struct {
	bot          *tgbotapi.BotAPI
	queue        *mediator.Queue
	participants types.ParticipantStore
	groups       types.GroupStore
	activities   types.ActivityStore
	alerts       types.AlertStore
	acker        AlertAcker
}

// New creates a Telegram adapter.
func New(token string, queue *mediator.Queue, participants types.ParticipantStore, groups types.GroupStore, activities types.ActivityStore, alerts types.AlertStore, acker AlertAcker) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Adapter{
		bot:          bot,
		queue:        queue,
		participants: participants,
		groups:       groups,
		activities:   activities,
		alerts:       alerts,
		acker:        acker,
	}, nil
}

// Start begins long-polling for Telegram updates.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			a.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		a.handleCommand(ctx, msg)
		return
	}

	inbound := &types.InboundMessage{
		Source: "telegram",
		Sender: participantID(msg.From.ID),
		Text:   msg.Text,
		At:     msg.Time(),
	}
	if msg.Chat.IsGroup() || msg.Chat.IsSuperGroup() {
		inbound.GroupID = groupID(msg.Chat.ID)
	}

	if err := a.queue.Enqueue(&mediator.Job{Msg: inbound}); err != nil {
		slog.Error("enqueue message failed",
			"chat_id", msg.Chat.ID, "error", err)
	}
}

func (a *Adapter) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		a.cmdStart(ctx, msg)

	case "ajuda":
		a.sendResponse(chatID, "Comandos disponíveis:\n"+
			"/start — registrar-se no AutiConnect\n"+
			"/perfil — ver seu perfil\n"+
			"/grupos — listar grupos temáticos\n"+
			"/entrar <nome> — entrar em um grupo\n"+
			"/atividades — atividades deste grupo\n"+
			"/alertas — alertas pendentes (AT)\n"+
			"/reconhecer <id> — reconhecer um alerta (AT)")

	case "perfil":
		a.cmdProfile(ctx, msg)

	case "grupos":
		a.cmdGroups(ctx, msg)

	case "entrar":
		a.cmdJoin(ctx, msg)

	case "atividades":
		a.cmdActivities(ctx, msg)

	case "alertas":
		a.cmdAlerts(ctx, msg)

	case "reconhecer":
		a.cmdAcknowledge(ctx, msg)

	default:
		a.sendResponse(chatID, "Comando desconhecido. Use /ajuda para ver os comandos.")
	}
}

func (a *Adapter) cmdStart(ctx context.Context, msg *tgbotapi.Message) {
	id := participantID(msg.From.ID)
	if _, err := a.participants.Get(ctx, id); err == nil {
		a.sendResponse(msg.Chat.ID, "Você já está registrado! Use /grupos para encontrar um grupo.")
		return
	}

	name := strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
	p := &types.Participant{
		ID:           id,
		Name:         name,
		Role:         types.RoleAutista,
		Style:        types.StyleDirect,
		CreatedAt:    time.Now(),
		LastActiveAt: time.Now(),
	}
	if err := a.participants.Put(ctx, p); err != nil {
		slog.Error("register participant failed", "participant_id", string(id), "error", err)
		a.sendResponse(msg.Chat.ID, "Não consegui completar o registro. Tente novamente.")
		return
	}

	a.sendResponse(msg.Chat.ID, fmt.Sprintf(
		"Bem-vindo ao AutiConnect, %s! Este é um espaço seguro para conversar "+
			"em grupos temáticos. Use /grupos para ver os grupos disponíveis, "+
			"ou me mande uma mensagem privada quando quiser conversar.", name))
}

func (a *Adapter) cmdProfile(ctx context.Context, msg *tgbotapi.Message) {
	p, err := a.participants.Get(ctx, participantID(msg.From.ID))
	if err != nil {
		a.sendResponse(msg.Chat.ID, "Você ainda não está registrado. Use /start.")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Nome: %s\nPapel: %s\nEstilo de comunicação: %s\n", p.Name, p.Role, p.Style)
	if len(p.Interests) > 0 {
		fmt.Fprintf(&b, "Interesses: %s\n", strings.Join(p.Interests, ", "))
	}
	a.sendResponse(msg.Chat.ID, b.String())
}

func (a *Adapter) cmdGroups(ctx context.Context, msg *tgbotapi.Message) {
	groups, err := a.groups.List(ctx)
	if err != nil {
		slog.Error("list groups failed", "error", err)
		a.sendResponse(msg.Chat.ID, "Não consegui listar os grupos agora.")
		return
	}
	if len(groups) == 0 {
		a.sendResponse(msg.Chat.ID, "Nenhum grupo criado ainda.")
		return
	}

	var b strings.Builder
	b.WriteString("Grupos temáticos:\n")
	for _, g := range groups {
		fmt.Fprintf(&b, "• %s — %s (%d/%d membros)\n", g.Name, g.Theme, len(g.Members), g.MaxMembers)
	}
	a.sendResponse(msg.Chat.ID, b.String())
}

func (a *Adapter) cmdJoin(ctx context.Context, msg *tgbotapi.Message) {
	name := strings.TrimSpace(msg.CommandArguments())
	if name == "" {
		a.sendResponse(msg.Chat.ID, "Uso: /entrar <nome do grupo>")
		return
	}

	groups, err := a.groups.List(ctx)
	if err != nil {
		slog.Error("list groups failed", "error", err)
		a.sendResponse(msg.Chat.ID, "Não consegui buscar os grupos agora.")
		return
	}

	var target *types.Group
	for _, g := range groups {
		if strings.EqualFold(g.Name, name) {
			target = g
			break
		}
	}
	if target == nil {
		a.sendResponse(msg.Chat.ID, fmt.Sprintf("Grupo %q não encontrado. Use /grupos.", name))
		return
	}

	id := participantID(msg.From.ID)
	for _, m := range target.Members {
		if m == id {
			a.sendResponse(msg.Chat.ID, "Você já faz parte deste grupo.")
			return
		}
	}
	if target.MaxMembers > 0 && len(target.Members) >= target.MaxMembers {
		a.sendResponse(msg.Chat.ID, "Este grupo já está cheio.")
		return
	}

	target.Members = append(target.Members, id)
	if err := a.groups.Put(ctx, target); err != nil {
		slog.Error("join group failed", "group_id", string(target.ID), "error", err)
		a.sendResponse(msg.Chat.ID, "Não consegui registrar sua entrada. Tente novamente.")
		return
	}
	a.sendResponse(msg.Chat.ID, fmt.Sprintf("Você entrou no grupo %s. Boas conversas!", target.Name))
}

func (a *Adapter) cmdActivities(ctx context.Context, msg *tgbotapi.Message) {
	if !msg.Chat.IsGroup() && !msg.Chat.IsSuperGroup() {
		a.sendResponse(msg.Chat.ID, "Use este comando dentro de um grupo.")
		return
	}

	activities, err := a.activities.ListByGroup(ctx, groupID(msg.Chat.ID))
	if err != nil {
		slog.Error("list activities failed", "chat_id", msg.Chat.ID, "error", err)
		a.sendResponse(msg.Chat.ID, "Não consegui listar as atividades agora.")
		return
	}

	var b strings.Builder
	for _, act := range activities {
		if act.Status == types.ActivityDone {
			continue
		}
		fmt.Fprintf(&b, "• [%s] %s — %s\n", act.Status, act.Title, act.ScheduledAt.Format("02/01 15:04"))
	}
	if b.Len() == 0 {
		a.sendResponse(msg.Chat.ID, "Nenhuma atividade agendada neste grupo.")
		return
	}
	a.sendResponse(msg.Chat.ID, "Atividades:\n"+b.String())
}

func (a *Adapter) cmdAlerts(ctx context.Context, msg *tgbotapi.Message) {
	if !a.isAT(ctx, msg.From.ID) {
		a.sendResponse(msg.Chat.ID, "Este comando é reservado aos Auxiliares Terapêuticos.")
		return
	}

	alerts, err := a.alerts.List(ctx)
	if err != nil {
		slog.Error("list alerts failed", "error", err)
		a.sendResponse(msg.Chat.ID, "Não consegui listar os alertas agora.")
		return
	}

	var b strings.Builder
	for _, alert := range alerts {
		if alert.Status == types.AlertAcknowledged {
			continue
		}
		fmt.Fprintf(&b, "• %s — participante %s, grupo %s, pontuação %.0f (%s)\n",
			alert.ID, alert.ParticipantID, alert.GroupID, alert.Score, alert.Status)
	}
	if b.Len() == 0 {
		a.sendResponse(msg.Chat.ID, "Nenhum alerta pendente.")
		return
	}
	a.sendResponse(msg.Chat.ID, "Alertas:\n"+b.String()+"\nUse /reconhecer <id> para assumir um alerta.")
}

func (a *Adapter) cmdAcknowledge(ctx context.Context, msg *tgbotapi.Message) {
	if !a.isAT(ctx, msg.From.ID) {
		a.sendResponse(msg.Chat.ID, "Este comando é reservado aos Auxiliares Terapêuticos.")
		return
	}

	id := strings.TrimSpace(msg.CommandArguments())
	if id == "" {
		a.sendResponse(msg.Chat.ID, "Uso: /reconhecer <id do alerta>")
		return
	}

	err := a.acker.HandleStatus(ctx, types.AlertID(id), types.AlertAcknowledged, participantID(msg.From.ID))
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			a.sendResponse(msg.Chat.ID, "Alerta não encontrado.")
			return
		}
		slog.Warn("acknowledge alert failed", "alert_id", id, "error", err)
		a.sendResponse(msg.Chat.ID, "Não consegui reconhecer este alerta.")
		return
	}
	a.sendResponse(msg.Chat.ID, "Alerta reconhecido. Obrigado por assumir o acompanhamento.")
}

// isAT reports whether the Telegram user is a registered human supervisor.
func (a *Adapter) isAT(ctx context.Context, userID int64) bool {
	p, err := a.participants.Get(ctx, participantID(userID))
	return err == nil && p.Role == types.RoleAT
}

// SendGroupMessage delivers a mediator message to a group chat.
func (a *Adapter) SendGroupMessage(_ context.Context, id types.GroupID, text string) error {
	chatID, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return fmt.Errorf("group %s is not a telegram chat: %w", id, err)
	}
	return a.send(chatID, text)
}

// SendPrivateMessage delivers a mediator message to a participant's direct
// chat.
func (a *Adapter) SendPrivateMessage(_ context.Context, id types.ParticipantID, text string) error {
	chatID, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return fmt.Errorf("participant %s is not a telegram user: %w", id, err)
	}
	return a.send(chatID, text)
}

// DeliverAlert notifies every registered AT privately. Delivery succeeds
// when at least one AT receives the alert.
func (a *Adapter) DeliverAlert(ctx context.Context, alert *types.AlertRecord) error {
	participants, err := a.participants.List(ctx)
	if err != nil {
		return fmt.Errorf("list participants: %w", err)
	}

	subject, err := a.participants.Get(ctx, alert.ParticipantID)
	if err != nil {
		// ATs still get the alert with whatever the record carries.
		slog.Warn("alert subject lookup failed",
			"alert_id", string(alert.ID), "participant_id", string(alert.ParticipantID), "error", err)
		subject = nil
	}
	text := alertText(alert, subject)

	var delivered int
	for _, p := range participants {
		if p.Role != types.RoleAT {
			continue
		}
		if err := a.SendPrivateMessage(ctx, p.ID, text); err != nil {
			slog.Warn("alert to AT failed",
				"alert_id", string(alert.ID), "at", string(p.ID), "error", err)
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return fmt.Errorf("no AT reachable for alert %s", alert.ID)
	}
	return nil
}

// alertText composes the AT notification for an alert. The escalated
// participant may be nil when the store lookup fails.
func alertText(alert *types.AlertRecord, subject *types.Participant) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚨 Alerta %s\n", alert.ID)
	if subject != nil && subject.Name != "" {
		fmt.Fprintf(&b, "Participante: %s (%s)\n", subject.Name, alert.ParticipantID)
	} else {
		fmt.Fprintf(&b, "Participante: %s\n", alert.ParticipantID)
	}
	fmt.Fprintf(&b, "Grupo: %s\nPontuação de risco: %.0f\n", alert.GroupID, alert.Score)
	if subject != nil && subject.EmergencyContact != "" {
		fmt.Fprintf(&b, "Contato de emergência: %s\n", subject.EmergencyContact)
	}
	fmt.Fprintf(&b, "Use /reconhecer %s ao assumir o acompanhamento.", alert.ID)
	return b.String()
}

func (a *Adapter) send(chatID int64, text string) error {
	for _, part := range splitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = "Markdown"
		if _, err := a.bot.Send(msg); err != nil {
			// Retry without markdown if it fails
			msg.ParseMode = ""
			if _, err := a.bot.Send(msg); err != nil {
				return fmt.Errorf("send message: %w", err)
			}
		}
	}
	return nil
}

// sendResponse sends best-effort; command replies are not worth failing over.
func (a *Adapter) sendResponse(chatID int64, text string) {
	if err := a.send(chatID, text); err != nil {
		slog.Error("send response failed", "chat_id", chatID, "error", err)
	}
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end > len(text) {
			end = len(text)
		} else {
			// Never cut a rune in half; Telegram rejects invalid UTF-8.
			for end > 0 && !utf8.RuneStart(text[end]) {
				end--
			}
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}

func participantID(userID int64) types.ParticipantID {
	return types.ParticipantID(strconv.FormatInt(userID, 10))
}

func groupID(chatID int64) types.GroupID {
	return types.GroupID(strconv.FormatInt(chatID, 10))
}
