package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"tryon-studio/internal/catalog"
	"tryon-studio/internal/mediagroup"
	"tryon-studio/internal/session"
	"tryon-studio/internal/telegram"
	"tryon-studio/internal/tryon"
)

type Messenger interface {
	SendText(chatID int64, text string) error
	SendTextWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) (int, error)
	EditKeyboard(chatID int64, messageID int, keyboard tgbotapi.InlineKeyboardMarkup) error
	AnswerCallback(callbackID, text string, alert bool) error
	SendPhoto(chatID int64, img tryon.ImagePart, caption string) error
	SendTyping(chatID int64)
	SendUploadingPhoto(chatID int64)
	DownloadPhoto(ctx context.Context, fileID string) (tryon.UploadedImage, error)
}

type GarmentFetcher interface {
	Fetch(ctx context.Context, e catalog.Entry) (tryon.UploadedImage, error)
}

type Options struct {
	Telegram Messenger
	Pipeline *tryon.Pipeline
	Sessions *session.Store
	Catalog  *catalog.Catalog
	Fetcher  GarmentFetcher
	Logger   *slog.Logger
}

type Handler struct {
	tg         Messenger
	pipeline   *tryon.Pipeline
	sessions   *session.Store
	catalog    *catalog.Catalog
	fetcher    GarmentFetcher
	logger     *slog.Logger
	aggregator *mediagroup.Aggregator
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cat := opts.Catalog
	if cat == nil {
		cat, _ = catalog.New(nil)
	}

	return &Handler{
		tg:       opts.Telegram,
		pipeline: opts.Pipeline,
		sessions: opts.Sessions,
		catalog:  cat,
		fetcher:  opts.Fetcher,
		logger:   logger,
	}
}

func (h *Handler) SetMediaGroupAggregator(ag *mediagroup.Aggregator) {
	h.aggregator = ag
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.CallbackQuery != nil {
		return h.handleCallback(ctx, update.CallbackQuery)
	}
	if update.Message == nil || update.Message.From == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID
	userID := msg.From.ID
	username := msg.From.UserName

	if msg.IsCommand() {
		return h.handleCommand(ctx, chatID, userID, username, msg)
	}

	if len(msg.Photo) > 0 {
		return h.handlePhoto(ctx, chatID, userID, username, msg)
	}

	if msg.Document != nil && isImageMime(msg.Document.MimeType) {
		return h.handleUpload(ctx, chatID, userID, username, msg.Caption, msg.Document.FileID)
	}

	if strings.TrimSpace(msg.Text) != "" {
		return h.tg.SendText(chatID, hintText)
	}

	return nil
}

func (h *Handler) HandleMediaGroup(ctx context.Context, group mediagroup.Group) {
	personID, garmentID, ok := group.Pair()
	if !ok {
		if len(group.FileIDs) == 1 {
			if err := h.handleUpload(ctx, group.ChatID, group.UserID, group.Username, group.Caption, group.FileIDs[0]); err != nil {
				h.logger.Error("album upload failed", "err", err)
			}
		}
		return
	}
	if len(group.FileIDs) > 2 {
		_ = h.tg.SendText(group.ChatID, "ℹ️ Only the first two photos of the album are used: you, then the garment.")
	}

	h.tg.SendTyping(group.ChatID)

	fileIDs := []string{personID, garmentID}
	uploads := make([]tryon.UploadedImage, len(fileIDs))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, fileID := range fileIDs {
		eg.Go(func() error {
			img, err := h.tg.DownloadPhoto(egCtx, fileID)
			if err != nil {
				return err
			}
			uploads[i] = img
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		h.logger.Error("album download failed", "err", err)
		_ = h.tg.SendText(group.ChatID, msgDownloadFailed)
		return
	}

	h.sessions.Put(group.UserID, group.Username, session.SlotPerson, uploads[0])
	h.sessions.Put(group.UserID, group.Username, session.SlotGarment, uploads[1])

	if err := h.runTryOn(ctx, group.ChatID, group.UserID, group.Username); err != nil {
		h.logger.Error("album try-on failed", "err", err)
	}
}

func (h *Handler) handleCommand(ctx context.Context, chatID int64, userID int64, username string, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return h.tg.SendText(chatID, startText)
	case "help":
		return h.tg.SendText(chatID, helpText)
	case "catalog":
		return h.sendCatalog(chatID, userID)
	case "garment":
		id := strings.TrimSpace(msg.CommandArguments())
		if id == "" {
			return h.tg.SendText(chatID, "❌ Please give a garment id.\nExample: /garment red-dress")
		}
		return h.selectGarment(ctx, chatID, userID, username, id)
	case "tryon":
		return h.runTryOn(ctx, chatID, userID, username)
	case "reset":
		h.sessions.Reset(userID)
		return h.tg.SendText(chatID, "✅ Photos cleared. Send a photo of yourself to start again.")
	default:
		return h.tg.SendText(chatID, "❌ Unknown command. Use /help.")
	}
}

func (h *Handler) handlePhoto(ctx context.Context, chatID int64, userID int64, username string, msg *tgbotapi.Message) error {
	photo := msg.Photo[len(msg.Photo)-1]

	if msg.MediaGroupID != "" && h.aggregator != nil {
		h.aggregator.Add(mediagroup.Item{
			ChatID:       chatID,
			UserID:       userID,
			Username:     username,
			MessageID:    msg.MessageID,
			MediaGroupID: msg.MediaGroupID,
			Caption:      msg.Caption,
			FileID:       photo.FileID,
		})
		return nil
	}

	return h.handleUpload(ctx, chatID, userID, username, msg.Caption, photo.FileID)
}

func (h *Handler) handleUpload(ctx context.Context, chatID int64, userID int64, username, caption, fileID string) error {
	h.tg.SendTyping(chatID)

	img, err := h.tg.DownloadPhoto(ctx, fileID)
	if err != nil {
		h.logger.Error("photo download failed", "err", err)
		return h.tg.SendText(chatID, msgDownloadFailed)
	}

	slot := h.sessions.Fill(userID, username, img, isGarmentCaption(caption))
	snap := h.sessions.Snapshot(userID, username)
	if snap.Ready() {
		return h.runTryOn(ctx, chatID, userID, username)
	}

	if slot == session.SlotGarment {
		return h.tg.SendText(chatID, "👗 Garment saved. Now send a photo of yourself.")
	}
	return h.tg.SendText(chatID, "🧍 Your photo is saved. Now send a garment photo (caption it \"garment\") or pick one with /catalog.")
}

func (h *Handler) selectGarment(ctx context.Context, chatID int64, userID int64, username, id string) error {
	entry, ok := h.catalog.Find(id)
	if !ok {
		return h.tg.SendText(chatID, fmt.Sprintf("❌ Garment %q is not in the catalog. Use /catalog.", id))
	}
	if h.fetcher == nil {
		return h.tg.SendText(chatID, msgDownloadFailed)
	}

	h.tg.SendTyping(chatID)
	img, err := h.fetcher.Fetch(ctx, entry)
	if err != nil {
		h.logger.Error("catalog fetch failed", "garment", entry.ID, "err", err)
		return h.tg.SendText(chatID, msgDownloadFailed)
	}

	h.sessions.PutGarment(userID, username, entry.ID, img)
	snap := h.sessions.Snapshot(userID, username)
	if snap.Ready() {
		return h.runTryOn(ctx, chatID, userID, username)
	}
	return h.tg.SendText(chatID, fmt.Sprintf("👗 %s selected. Now send a photo of yourself.", entryLabel(entry)))
}

func (h *Handler) runTryOn(ctx context.Context, chatID int64, userID int64, username string) error {
	snap := h.sessions.Snapshot(userID, username)
	switch {
	case snap.Person.IsEmpty() && snap.Garment.IsEmpty():
		return h.tg.SendText(chatID, "📷 Send a photo of yourself and a garment photo first.")
	case snap.Person.IsEmpty():
		return h.tg.SendText(chatID, "🧍 Now send a photo of yourself.")
	case snap.Garment.IsEmpty():
		return h.tg.SendText(chatID, "👗 Now send a garment photo or pick one with /catalog.")
	}

	ticket, reqCtx, err := h.sessions.Begin(ctx, userID, username)
	if errors.Is(err, tryon.ErrInFlight) {
		return h.tg.SendText(chatID, "⏳ Your try-on is still being generated. Please wait.")
	}
	if err != nil {
		return err
	}

	_ = h.tg.SendText(chatID, "🎨 Generating your try-on, this can take up to a minute...")
	h.tg.SendUploadingPhoto(chatID)

	out := h.pipeline.Run(reqCtx, snap.Person, snap.Garment)
	if !h.sessions.Finish(userID, ticket, out) {
		h.logger.Info("stale try-on outcome dropped", "user_id", userID, "seq", ticket.Seq)
		return nil
	}

	if !out.OK() {
		h.logger.Warn("try-on failed", "user_id", userID, "kind", out.Kind())
		return h.tg.SendText(chatID, "❌ "+out.Failure.Message)
	}

	caption := "✅ Here is your try-on!"
	if entry, ok := h.catalog.Find(snap.GarmentID); ok {
		caption = "✅ Here is your try-on: " + entryLabel(entry)
	}
	return h.tg.SendPhoto(chatID, *out.Image, caption)
}

func entryLabel(e catalog.Entry) string {
	if e.PriceLabel == "" {
		return e.Title
	}
	return fmt.Sprintf("%s (%s)", e.Title, e.PriceLabel)
}

const msgDownloadFailed = "❌ Could not load the photo. Please send it again."

const startText = "👗 Virtual Try-On\n\n" +
	"Send a photo of yourself and a photo of a garment, and I will show you wearing it.\n\n" +
	"Commands:\n" +
	"/catalog - Pick a garment from the catalog\n" +
	"/garment <id> - Pick a catalog garment by id\n" +
	"/tryon - Generate again with the current photos\n" +
	"/reset - Clear your photos\n" +
	"/help - Help"

const helpText = "👗 Help\n\n" +
	"1. Send a clear, full-body or half-body photo of yourself.\n" +
	"2. Send a garment photo with a caption like \"garment\" or \"dress\", or pick one with /catalog.\n" +
	"You can also send both in one album: you first, then the garment.\n\n" +
	"/tryon regenerates, /reset starts over."

const hintText = "📷 Send a photo of yourself and a garment photo. /help explains how."
