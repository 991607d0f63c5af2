package hold

import (
	"errors"
	"fmt"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/ledger"
)

// Hold ドメインのエラー定義
var (
	ErrHoldNotFound        = errors.New("保留が見つかりません")
	ErrHoldNotCommittable  = errors.New("保留は確定できません")
	ErrInvalidQuantity     = ledger.ErrInvalidQuantity
	ErrEventIDRequired     = errors.New("イベントIDは必須です")
	ErrCategoryIDRequired  = errors.New("券種IDが空です")
	ErrInvalidReason       = errors.New("保留理由が不正です")
	ErrInvalidExpiry       = errors.New("有効期限は作成時刻より後である必要があります")
	ErrEventWideNotAllowed = errors.New("イベント全体の保留は organizer_hold のみ作成できます")
)

// ErrHoldNotCommittable を包むエラー。errors.Is で区別できる
var (
	ErrHoldExpired          = fmt.Errorf("%w: 有効期限が切れています", ErrHoldNotCommittable)
	ErrHoldAlreadyCommitted = fmt.Errorf("%w: 既に確定されています", ErrHoldNotCommittable)
	ErrHoldAlreadyReleased  = fmt.Errorf("%w: 既に解放されています", ErrHoldNotCommittable)
)

// ErrExceedsOrderLimit は1注文あたりの上限超過。ErrInvalidQuantity を包む
var ErrExceedsOrderLimit = fmt.Errorf("%w: 1注文あたりの上限を超えています", ErrInvalidQuantity)
