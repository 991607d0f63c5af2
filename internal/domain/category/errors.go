package category

import "errors"

// Category ドメインのエラー定義
var (
	ErrCategoryNotFound   = errors.New("券種が見つかりません")
	ErrCategoryInactive   = errors.New("券種は販売停止中です")
	ErrCategoryNotOnSale  = errors.New("券種の販売期間外です")
	ErrEventIDRequired    = errors.New("イベントIDは必須です")
	ErrNameRequired       = errors.New("券種名は必須です")
	ErrInvalidCapacity    = errors.New("容量が不正です")
	ErrInvalidPrice       = errors.New("価格と手数料は0以上である必要があります")
	ErrInvalidCurrency    = errors.New("通貨コードは3文字である必要があります")
	ErrInvalidMaxPerOrder = errors.New("1注文あたりの上限は1以上である必要があります")
	ErrInvalidSalesWindow = errors.New("販売終了は販売開始より後である必要があります")
)
