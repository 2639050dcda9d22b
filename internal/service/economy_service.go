package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/d60-Lab/clicker/internal/model"
	"github.com/d60-Lab/clicker/internal/repository"
	"github.com/d60-Lab/clicker/pkg/logger"
)

const maxDisplayNameLen = 32

// Balance 可用余额 = 累计点击 - 累计花费
type Balance struct {
	UserID      string `json:"userId"`
	TotalClicks int64  `json:"totalClicks"`
	Spent       int64  `json:"spent"`
	Available   int64  `json:"available"`
}

// PurchaseRequest Equip 与 DisplayName 会与购买在同一事务内写入资料
type PurchaseRequest struct {
	ItemSlug    string
	Equip       bool
	DisplayName *string
}

type PurchaseResult struct {
	Purchase *model.AvatarPurchase `json:"purchase"`
	Balance  Balance               `json:"balance"`
	Profile  *model.DisplayName    `json:"profile,omitempty"`
}

type Loadout struct {
	Profile *model.DisplayName `json:"profile"`
	Balance Balance            `json:"balance"`
	Owned   []string           `json:"owned"`
}

// EconomyService 购买与装备。余额校验是读后写，不加分布式锁：
// 多设备并发购买可能同时通过校验
type EconomyService interface {
	Balance(ctx context.Context, userID string) (*Balance, error)
	Purchase(ctx context.Context, id Identity, req PurchaseRequest) (*PurchaseResult, error)
	Equip(ctx context.Context, id Identity, slot model.Slot, value *string) (*model.DisplayName, error)
	Loadout(ctx context.Context, id Identity) (*Loadout, error)
	Purchases(ctx context.Context, userID string) ([]*model.AvatarPurchase, error)
}

type economyService struct {
	store    *repository.Store
	validate *validator.Validate
	notifier PresenceNotifier
	now      func() time.Time
}

func NewEconomyService(store *repository.Store, notifier PresenceNotifier, now func() time.Time) EconomyService {
	if now == nil {
		now = time.Now
	}
	return &economyService{store: store, validate: validator.New(), notifier: notifier, now: now}
}

func (s *economyService) Balance(ctx context.Context, userID string) (*Balance, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	b, err := balanceOf(ctx, s.store, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	return b, nil
}

// balanceOf 每次都直接读库，不使用聚合缓存
func balanceOf(ctx context.Context, store *repository.Store, userID string) (*Balance, error) {
	clicks, err := store.Clicks.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	spent, err := store.Purchases.SumByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Balance{UserID: userID, TotalClicks: clicks, Spent: spent, Available: clicks - spent}, nil
}

func (s *economyService) Purchase(ctx context.Context, id Identity, req PurchaseRequest) (*PurchaseResult, error) {
	if id.UserID == "" {
		return nil, ErrUnauthenticated
	}
	slug := strings.TrimSpace(req.ItemSlug)
	if slug == "" {
		return nil, &ValidationError{Field: "itemSlug", Reason: "required"}
	}
	if req.DisplayName != nil {
		name, err := s.validName(*req.DisplayName)
		if err != nil {
			return nil, err
		}
		req.DisplayName = &name
	}

	res := &PurchaseResult{}
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		item, err := tx.Items.GetBySlug(ctx, slug)
		if errors.Is(err, repository.ErrNotFound) || (err == nil && !item.IsActive) {
			return ErrItemNotFound
		}
		if err != nil {
			return err
		}

		owned, err := tx.Purchases.Owns(ctx, id.UserID, slug)
		if err != nil {
			return err
		}
		if owned {
			return ErrAlreadyOwned
		}

		bal, err := balanceOf(ctx, tx, id.UserID)
		if err != nil {
			return err
		}
		if bal.Available < item.Price {
			return &InsufficientBalanceError{Price: item.Price, Balance: bal.Available, Shortfall: item.Price - bal.Available}
		}

		purchase := &model.AvatarPurchase{
			ID:          uuid.New().String(),
			UserID:      id.UserID,
			ItemSlug:    item.Slug,
			PurchasedAt: s.now().UnixMilli(),
			Amount:      item.Price,
		}
		if err := tx.Purchases.Create(ctx, purchase); err != nil {
			return err
		}
		res.Purchase = purchase
		res.Balance = Balance{UserID: id.UserID, TotalClicks: bal.TotalClicks, Spent: bal.Spent + item.Price, Available: bal.Available - item.Price}

		fields, err := bundledFields(item, req)
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return nil
		}
		res.Profile, err = applyProfileFields(ctx, tx, id, fields)
		return err
	})
	if err != nil {
		purchasesTotal.WithLabelValues(resultLabel(err)).Inc()
		return nil, domainOrStoreErr(err)
	}

	purchasesTotal.WithLabelValues("purchased").Inc()
	logger.Info("item purchased",
		zap.String("user_id", id.UserID),
		zap.String("item", res.Purchase.ItemSlug),
		zap.Int64("amount", res.Purchase.Amount),
		zap.Int64("available", res.Balance.Available))
	if res.Profile != nil && s.notifier != nil {
		s.notifier.Refresh(id.UserID)
	}
	return res, nil
}

// bundledFields 同一手势内“购买并装备/改名”需要写入的资料字段
func bundledFields(item *model.AvatarItem, req PurchaseRequest) (map[string]any, error) {
	fields := map[string]any{}
	slot := model.Slot(item.Type)
	if req.DisplayName != nil {
		if slot != model.SlotName {
			return nil, &ValidationError{Field: "displayName", Reason: "item does not unlock a display name"}
		}
		fields[model.SlotName.Column()] = *req.DisplayName
	}
	if req.Equip && slot.Valid() && slot != model.SlotName {
		fields[slot.Column()] = slotValue(item)
	}
	return fields, nil
}

func slotValue(item *model.AvatarItem) string {
	if model.Slot(item.Type) == model.SlotColor {
		return item.ColorValue()
	}
	return item.Slug
}

func (s *economyService) Equip(ctx context.Context, id Identity, slot model.Slot, value *string) (*model.DisplayName, error) {
	if id.UserID == "" {
		return nil, ErrUnauthenticated
	}
	if !slot.Valid() {
		return nil, &ValidationError{Field: "slot", Reason: "unknown slot"}
	}

	var profile *model.DisplayName
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		fields := map[string]any{}
		switch {
		case value == nil && slot == model.SlotName:
			fields[slot.Column()] = id.DefaultDisplayName()
		case value == nil:
			fields[slot.Column()] = nil
		case slot == model.SlotName:
			name, err := s.validName(*value)
			if err != nil {
				return err
			}
			ok, err := ownsType(ctx, tx, id.UserID, model.SlotName)
			if err != nil {
				return err
			}
			if !ok {
				return ErrNotOwned
			}
			fields[slot.Column()] = name
		default:
			item, err := tx.Items.GetBySlug(ctx, strings.TrimSpace(*value))
			if errors.Is(err, repository.ErrNotFound) {
				return ErrItemNotFound
			}
			if err != nil {
				return err
			}
			if model.Slot(item.Type) != slot {
				return &ValidationError{Field: "value", Reason: "item does not fit slot " + string(slot)}
			}
			owned, err := tx.Purchases.Owns(ctx, id.UserID, item.Slug)
			if err != nil {
				return err
			}
			if !owned {
				return ErrNotOwned
			}
			fields[slot.Column()] = slotValue(item)
		}

		var err error
		profile, err = applyProfileFields(ctx, tx, id, fields)
		return err
	})
	if err != nil {
		return nil, domainOrStoreErr(err)
	}
	if s.notifier != nil {
		s.notifier.Refresh(id.UserID)
	}
	return profile, nil
}

func (s *economyService) Loadout(ctx context.Context, id Identity) (*Loadout, error) {
	if id.UserID == "" {
		return nil, ErrUnauthenticated
	}
	profile, err := s.store.Profiles.GetByUserID(ctx, id.UserID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, storeErr(err)
	}
	bal, err := balanceOf(ctx, s.store, id.UserID)
	if err != nil {
		return nil, storeErr(err)
	}
	purchases, err := s.store.Purchases.ListByUser(ctx, id.UserID)
	if err != nil {
		return nil, storeErr(err)
	}
	return &Loadout{Profile: profile, Balance: *bal, Owned: ownedSlugs(purchases)}, nil
}

func (s *economyService) Purchases(ctx context.Context, userID string) ([]*model.AvatarPurchase, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	res, err := s.store.Purchases.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	return res, nil
}

func (s *economyService) validName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if err := s.validate.Var(name, "required,max=32"); err != nil {
		return "", &ValidationError{Field: "displayName", Reason: "must be 1-32 characters"}
	}
	return name, nil
}

// applyProfileFields 资料不存在时先创建再写入字段
func applyProfileFields(ctx context.Context, tx *repository.Store, id Identity, fields map[string]any) (*model.DisplayName, error) {
	if _, err := tx.Profiles.CreateIfAbsent(ctx, newProfile(id)); err != nil {
		return nil, err
	}
	if err := tx.Profiles.UpdateFields(ctx, id.UserID, fields); err != nil {
		return nil, err
	}
	return tx.Profiles.GetByUserID(ctx, id.UserID)
}

func ownsType(ctx context.Context, tx *repository.Store, userID string, slot model.Slot) (bool, error) {
	purchases, err := tx.Purchases.ListByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	items, err := tx.Items.ListBySlugs(ctx, ownedSlugs(purchases))
	if err != nil {
		return false, err
	}
	for _, it := range items {
		if model.Slot(it.Type) == slot {
			return true, nil
		}
	}
	return false, nil
}

func ownedSlugs(purchases []*model.AvatarPurchase) []string {
	seen := make(map[string]struct{}, len(purchases))
	out := make([]string, 0, len(purchases))
	for _, p := range purchases {
		if _, ok := seen[p.ItemSlug]; ok {
			continue
		}
		seen[p.ItemSlug] = struct{}{}
		out = append(out, p.ItemSlug)
	}
	return out
}

func isDomainErr(err error) bool {
	var ib *InsufficientBalanceError
	var ve *ValidationError
	return errors.Is(err, ErrItemNotFound) ||
		errors.Is(err, ErrAlreadyOwned) ||
		errors.Is(err, ErrNotOwned) ||
		errors.Is(err, ErrSlugTaken) ||
		errors.Is(err, ErrSlugImmutable) ||
		errors.As(err, &ib) ||
		errors.As(err, &ve)
}

func domainOrStoreErr(err error) error {
	if isDomainErr(err) {
		return err
	}
	return storeErr(err)
}

func resultLabel(err error) string {
	var ib *InsufficientBalanceError
	switch {
	case errors.Is(err, ErrAlreadyOwned):
		return "already_owned"
	case errors.Is(err, ErrItemNotFound):
		return "not_found"
	case errors.As(err, &ib):
		return "insufficient_balance"
	case isDomainErr(err):
		return "invalid"
	default:
		return "error"
	}
}
