package application

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/clock"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/category"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/hold"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/pricing"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/pkg/tracing"
)

// PricingService は券種と保留を金額計算の明細に変換する
type PricingService struct {
	categoryRepo category.Repository
	holdRepo     hold.Repository
	promoRepo    pricing.PromoRepository
	fees         pricing.FeeSchedule
	clock        clock.Clock
}

func NewPricingService(cr category.Repository, hr hold.Repository, pr pricing.PromoRepository, fees pricing.FeeSchedule, c clock.Clock) *PricingService {
	if c == nil {
		c = clock.NewSystem()
	}
	return &PricingService{categoryRepo: cr, holdRepo: hr, promoRepo: pr, fees: fees, clock: c}
}

type PriceCartInput struct {
	EventID   string // 空なら券種から決める
	Lines     []CartLine
	PromoCode string
}

// PriceCart はカートの見積もりを返す。在庫には触れない
func (s *PricingService) PriceCart(ctx context.Context, input PriceCartInput) (pricing.Quote, error) {
	ctx, span := tracing.Start(ctx, "PricingService.PriceCart")
	defer span.End()

	lines, err := mergeLines(input.Lines)
	if err != nil {
		return pricing.Quote{}, tracing.RecordError(span, err)
	}
	cats, err := s.categoryRepo.GetByIDs(ctx, lo.Map(lines, func(l CartLine, _ int) string { return l.CategoryID }))
	if err != nil {
		return pricing.Quote{}, tracing.RecordError(span, err)
	}
	eventID, err := commonEventID(input.EventID, lo.Map(cats, func(c *category.Category, _ int) string { return c.EventID }))
	if err != nil {
		return pricing.Quote{}, tracing.RecordError(span, err)
	}

	priced := make([]pricing.Line, 0, len(lines))
	for i, l := range lines {
		priced = append(priced, lineFor(cats[i], l.Quantity))
	}
	quote, err := s.quote(ctx, eventID, priced, input.PromoCode)
	return quote, tracing.RecordError(span, err)
}

type PriceHoldsInput struct {
	HoldIDs   []string
	PromoCode string
}

// PriceHolds は保留している内容そのものの見積もりを返す
// すべて同じイベントの券種保留で、確定可能である必要がある
func (s *PricingService) PriceHolds(ctx context.Context, input PriceHoldsInput) (pricing.Quote, error) {
	ctx, span := tracing.Start(ctx, "PricingService.PriceHolds")
	defer span.End()

	ids := lo.Uniq(input.HoldIDs)
	if len(ids) == 0 {
		return pricing.Quote{}, pricing.ErrEmptyCart
	}
	now := s.clock.Now()
	cart := make([]CartLine, 0, len(ids))
	eventIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		h, err := s.holdRepo.GetByID(ctx, id)
		if err != nil {
			return pricing.Quote{}, tracing.RecordError(span, err)
		}
		if h.IsEventWide() {
			return pricing.Quote{}, fmt.Errorf("%w: %s", ErrHoldNotPriceable, h.ID)
		}
		if err := h.CheckCommittable(now); err != nil {
			return pricing.Quote{}, fmt.Errorf("保留 %s: %w", h.ID, err)
		}
		cart = append(cart, CartLine{CategoryID: *h.CategoryID, Quantity: h.Quantity})
		eventIDs = append(eventIDs, h.EventID)
	}
	eventID, err := commonEventID("", eventIDs)
	if err != nil {
		return pricing.Quote{}, err
	}

	lines, err := mergeLines(cart)
	if err != nil {
		return pricing.Quote{}, err
	}
	cats, err := s.categoryRepo.GetByIDs(ctx, lo.Map(lines, func(l CartLine, _ int) string { return l.CategoryID }))
	if err != nil {
		return pricing.Quote{}, tracing.RecordError(span, err)
	}
	priced := make([]pricing.Line, 0, len(lines))
	for i, l := range lines {
		priced = append(priced, lineFor(cats[i], l.Quantity))
	}
	quote, err := s.quote(ctx, eventID, priced, input.PromoCode)
	return quote, tracing.RecordError(span, err)
}

func (s *PricingService) quote(ctx context.Context, eventID string, lines []pricing.Line, code string) (pricing.Quote, error) {
	promo, err := s.resolvePromo(ctx, eventID, code)
	if err != nil {
		return pricing.Quote{}, err
	}
	return pricing.Calculate(lines, promo, s.fees)
}

// resolvePromo はコードを検証して割引を返す。空コードは割引なし
func (s *PricingService) resolvePromo(ctx context.Context, eventID, code string) (*pricing.Promo, error) {
	code = pricing.NormalizeCode(code)
	if code == "" {
		return nil, nil
	}
	pc, err := s.promoRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := pc.CheckEligible(eventID, s.clock.Now()); err != nil {
		return nil, err
	}
	p := pc.Promo()
	return &p, nil
}

func lineFor(c *category.Category, quantity int) pricing.Line {
	return pricing.Line{
		CategoryID: c.ID,
		Quantity:   quantity,
		UnitPrice:  c.UnitPrice,
		UnitFee:    c.UnitFee,
		Currency:   c.Currency,
	}
}

// commonEventID は全要素が同じイベントであることを確認する
func commonEventID(want string, eventIDs []string) (string, error) {
	for _, id := range eventIDs {
		if want == "" {
			want = id
			continue
		}
		if id != want {
			return "", ErrMixedEvents
		}
	}
	return want, nil
}
