package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tryon-studio/internal/catalog"
)

const (
	catalogCallbackPrefix = "tc"
	catalogPageSize       = 6
)

func (h *Handler) sendCatalog(chatID int64, userID int64) error {
	if h.catalog.Len() == 0 {
		return h.tg.SendText(chatID, "ℹ️ The catalog is empty. Send your own garment photo instead.")
	}
	_, err := h.tg.SendTextWithKeyboard(chatID, catalogText(h.catalog), catalogKeyboard(userID, h.catalog.Entries(), 0))
	return err
}

func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if q == nil || q.Message == nil || q.From == nil {
		return nil
	}
	data := strings.TrimSpace(q.Data)
	if !strings.HasPrefix(data, catalogCallbackPrefix+":") {
		return nil
	}

	parts := strings.Split(data, ":")
	if len(parts) < 3 {
		return nil
	}

	ownerID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil
	}
	if ownerID != q.From.ID {
		_ = h.tg.AnswerCallback(q.ID, "This menu belongs to someone else.", true)
		return nil
	}

	action := parts[2]
	args := parts[3:]
	chatID := q.Message.Chat.ID
	username := q.From.UserName

	switch action {
	case "page":
		page := 0
		if len(args) >= 1 {
			page, _ = strconv.Atoi(args[0])
		}
		_ = h.tg.AnswerCallback(q.ID, "", false)
		return h.tg.EditKeyboard(chatID, q.Message.MessageID, catalogKeyboard(ownerID, h.catalog.Entries(), page))
	case "garment":
		if len(args) < 1 {
			return nil
		}
		id := strings.Join(args, ":")
		_ = h.tg.AnswerCallback(q.ID, "Loading garment…", false)
		return h.selectGarment(ctx, chatID, ownerID, username, id)
	case "tryon":
		_ = h.tg.AnswerCallback(q.ID, "Generating…", false)
		return h.runTryOn(ctx, chatID, ownerID, username)
	case "reset":
		h.sessions.Reset(ownerID)
		_ = h.tg.AnswerCallback(q.ID, "Cleared", false)
		return h.tg.SendText(chatID, "✅ Photos cleared. Send a photo of yourself to start again.")
	default:
		_ = h.tg.AnswerCallback(q.ID, "", false)
		return nil
	}
}

func catalogText(c *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString("👗 Catalog\n\n")
	for _, e := range c.Entries() {
		b.WriteString(fmt.Sprintf("• %s  /garment %s\n", entryLabel(e), e.ID))
	}
	return strings.TrimSpace(b.String())
}

func catalogKeyboard(ownerID int64, entries []catalog.Entry, page int) tgbotapi.InlineKeyboardMarkup {
	pages := (len(entries) + catalogPageSize - 1) / catalogPageSize
	if pages == 0 {
		pages = 1
	}
	page = max(0, min(page, pages-1))

	start := page * catalogPageSize
	end := min(start+catalogPageSize, len(entries))

	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, e := range entries[start:end] {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(truncateLine(e.Title, 24), cb(ownerID, "garment", e.ID)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	if pages > 1 {
		var nav []tgbotapi.InlineKeyboardButton
		if page > 0 {
			nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅ Prev", cb(ownerID, "page", strconv.Itoa(page-1))))
		}
		if page < pages-1 {
			nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Next ➡", cb(ownerID, "page", strconv.Itoa(page+1))))
		}
		rows = append(rows, nav)
	}

	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("🎨 Try on", cb(ownerID, "tryon")),
		tgbotapi.NewInlineKeyboardButtonData("Reset", cb(ownerID, "reset")),
	})

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func cb(ownerID int64, parts ...string) string {
	return fmt.Sprintf("%s:%d:%s", catalogCallbackPrefix, ownerID, strings.Join(parts, ":"))
}

func truncateLine(s string, limit int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if limit <= 0 || len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}
