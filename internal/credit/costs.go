package credit

import "github.com/arcanalabs/arcana/internal/domain"

const (
	extraStyleCost       = 1
	extendedReadingCost  = 2
	FollowUpQuestionCost = 1
)

var spreadBaseCosts = map[domain.SpreadType]int{
	domain.SpreadSingle:       1,
	domain.SpreadThreeCard:    3,
	domain.SpreadHorseshoe:    4,
	domain.SpreadRelationship: 4,
	domain.SpreadCelticCross:  5,
}

// CalculateReadingCost is a pure function over the static cost table. The first
// interpretation style is included in the base cost, each additional one costs
// extra, and the extended interpretation is a flat surcharge.
func (s *Service) CalculateReadingCost(
	spread domain.SpreadType,
	styleCount int,
	extended bool) (domain.CostBreakdown, error) {

	base, ok := spreadBaseCosts[spread]
	if !ok {
		return domain.CostBreakdown{}, domain.ErrInvalidSpreadType
	}

	styleCost := 0
	if styleCount > 1 {
		styleCost = (styleCount - 1) * extraStyleCost
	}

	extendedCost := 0
	if extended {
		extendedCost = extendedReadingCost
	}

	return domain.CostBreakdown{
		BaseCost:     base,
		StyleCost:    styleCost,
		ExtendedCost: extendedCost,
		TotalCost:    base + styleCost + extendedCost,
	}, nil
}
