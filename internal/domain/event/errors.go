package event

import "errors"

// Event ドメインのエラー定義
var (
	ErrEventNotFound     = errors.New("イベントが見つかりません")
	ErrEventNameRequired = errors.New("イベント名は必須です")
	ErrInvalidCapacity   = errors.New("容量は0以上である必要があります")
	ErrInvalidCounters   = errors.New("在庫カウンタが不正です")
	ErrCapacityExceeded  = errors.New("割当が容量を超えています")
)
