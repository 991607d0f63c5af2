package hold

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/ledger"
)

// Reason は保留の理由を表す
type Reason string

const (
	ReasonCheckout      Reason = "checkout"
	ReasonReservation   Reason = "reservation"
	ReasonOrganizerHold Reason = "organizer_hold"
)

// Valid は定義済みの理由かを返す
func (r Reason) Valid() bool {
	switch r {
	case ReasonCheckout, ReasonReservation, ReasonOrganizerHold:
		return true
	}
	return false
}

// BypassesOrderLimit は1注文あたりの上限を無視できるかを返す
func (r Reason) BypassesOrderLimit() bool {
	return r == ReasonOrganizerHold
}

// BypassesSalesWindow は販売期間外でも保留できるかを返す
func (r Reason) BypassesSalesWindow() bool {
	return r == ReasonReservation || r == ReasonOrganizerHold
}

// Status は保留の状態を表す
type Status string

const (
	StatusActive    Status = "active"
	StatusCommitted Status = "committed"
	StatusReleased  Status = "released"
	StatusExpired   Status = "expired"
)

// IsTerminal は終端状態かを返す。終端の保留は二度と変化しない
func (s Status) IsTerminal() bool {
	return s == StatusCommitted || s == StatusReleased || s == StatusExpired
}

// Hold は券種 (またはイベント全体) に対する期限付きの確保
type Hold struct {
	ID         string
	EventID    string
	CategoryID *string // nil はイベント全体
	Quantity   int
	Reason     Reason
	Status     Status
	CreatedAt  time.Time
	ExpiresAt  time.Time
	SettledAt  *time.Time
	UpdatedAt  time.Time
}

// NewHold は active 状態の保留を作成する
func NewHold(eventID string, categoryID *string, quantity int, reason Reason, ttl time.Duration, now time.Time) (*Hold, error) {
	h := &Hold{
		ID:         uuid.NewString(),
		EventID:    eventID,
		CategoryID: categoryID,
		Quantity:   quantity,
		Reason:     reason,
		Status:     StatusActive,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		UpdatedAt:  now,
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// Scope は台帳上の対象を返す
func (h *Hold) Scope() ledger.Scope {
	return ledger.Scope{EventID: h.EventID, CategoryID: h.CategoryID}
}

// Token は台帳の予約トークンを返す
func (h *Hold) Token() ledger.Token {
	return ledger.Token{HoldID: h.ID, Scope: h.Scope(), Quantity: h.Quantity}
}

// IsEventWide はイベント全体の保留かを返す
func (h *Hold) IsEventWide() bool {
	return h.CategoryID == nil
}

// IsActive は active 状態かを返す
func (h *Hold) IsActive() bool {
	return h.Status == StatusActive
}

// IsLapsed は expiresAt <= now かを返す
func (h *Hold) IsLapsed(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}

// CheckCommittable は確定できるかを検証する
// 期限切れの active 保留は ErrHoldExpired を返す。呼び出し側が expired に遷移させる
func (h *Hold) CheckCommittable(now time.Time) error {
	switch h.Status {
	case StatusActive:
		if h.IsLapsed(now) {
			return ErrHoldExpired
		}
		return nil
	case StatusCommitted:
		return ErrHoldAlreadyCommitted
	case StatusReleased:
		return ErrHoldAlreadyReleased
	case StatusExpired:
		return ErrHoldExpired
	}
	return fmt.Errorf("%w: %s", ErrHoldNotCommittable, h.Status)
}

// Settle は active から終端状態へ遷移させる。active 以外なら false
func (h *Hold) Settle(to Status, now time.Time) bool {
	if !h.IsActive() || !to.IsTerminal() {
		return false
	}
	h.Status = to
	h.SettledAt = &now
	h.UpdatedAt = now
	return true
}

// Validate は保留の検証を行う
func (h *Hold) Validate() error {
	if h.EventID == "" {
		return ErrEventIDRequired
	}
	if h.CategoryID != nil && *h.CategoryID == "" {
		return ErrCategoryIDRequired
	}
	if h.Quantity < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, h.Quantity)
	}
	if !h.Reason.Valid() {
		return ErrInvalidReason
	}
	if !h.ExpiresAt.After(h.CreatedAt) {
		return ErrInvalidExpiry
	}
	if h.IsEventWide() && h.Reason != ReasonOrganizerHold {
		return ErrEventWideNotAllowed
	}
	return nil
}
