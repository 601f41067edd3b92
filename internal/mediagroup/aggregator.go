package mediagroup

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

type Item struct {
	ChatID       int64
	UserID       int64
	Username     string
	MessageID    int
	MediaGroupID string
	Caption      string
	FileID       string
}

type Group struct {
	ChatID   int64
	UserID   int64
	Username string
	Caption  string
	FileIDs  []string
}

func (g Group) Pair() (person, garment string, ok bool) {
	if len(g.FileIDs) < 2 {
		return "", "", false
	}
	return g.FileIDs[0], g.FileIDs[1], true
}

type Options struct {
	Debounce time.Duration
	OnFlush  func(Group)
}

type Aggregator struct {
	mu       sync.Mutex
	debounce time.Duration
	onFlush  func(Group)
	groups   map[string]*pendingGroup
}

type pendingGroup struct {
	group Group
	items []orderedFile
	timer *time.Timer
}

type orderedFile struct {
	messageID int
	fileID    string
}

func New(opts Options) *Aggregator {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 1200 * time.Millisecond
	}

	return &Aggregator{
		debounce: debounce,
		onFlush:  opts.OnFlush,
		groups:   make(map[string]*pendingGroup),
	}
}

func (a *Aggregator) Add(item Item) {
	if item.MediaGroupID == "" || item.FileID == "" {
		return
	}

	key := makeKey(item.ChatID, item.MediaGroupID)

	a.mu.Lock()
	defer a.mu.Unlock()

	pg, ok := a.groups[key]
	if !ok {
		pg = &pendingGroup{
			group: Group{
				ChatID:   item.ChatID,
				UserID:   item.UserID,
				Username: item.Username,
				Caption:  item.Caption,
			},
		}
		a.groups[key] = pg
	} else if item.Caption != "" {
		pg.group.Caption = item.Caption
	}
	pg.items = append(pg.items, orderedFile{messageID: item.MessageID, fileID: item.FileID})

	if pg.timer != nil {
		pg.timer.Stop()
	}
	pg.timer = time.AfterFunc(a.debounce, func() {
		a.flush(key)
	})
}

func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.groups)
}

func (a *Aggregator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for key, pg := range a.groups {
		if pg.timer != nil {
			pg.timer.Stop()
		}
		delete(a.groups, key)
	}
}

func (a *Aggregator) flush(key string) {
	a.mu.Lock()
	pg, ok := a.groups[key]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.groups, key)

	// Telegram may deliver album messages out of order.
	sort.SliceStable(pg.items, func(i, j int) bool {
		return pg.items[i].messageID < pg.items[j].messageID
	})
	group := pg.group
	group.FileIDs = make([]string, 0, len(pg.items))
	for _, it := range pg.items {
		group.FileIDs = append(group.FileIDs, it.fileID)
	}
	onFlush := a.onFlush
	a.mu.Unlock()

	if onFlush != nil {
		onFlush(group)
	}
}

func makeKey(chatID int64, mediaGroupID string) string {
	return fmt.Sprintf("%d:%s", chatID, mediaGroupID)
}
