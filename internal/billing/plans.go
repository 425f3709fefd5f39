package billing

// Plan is a subscription tier. The catalog is fixed in code; the admin
// console changes which plan a user is on, not the tiers themselves.
type Plan struct {
	Name           string  `json:"name"`
	MessagesPerDay int     `json:"messages_per_day"` // -1 = unlimited
	Price          float64 `json:"price"`            // BRL per month
}

const FreePlan = "free"

var Plans = map[string]Plan{
	FreePlan:    {Name: "Gratuito", MessagesPerDay: 3, Price: 0},
	"basico":    {Name: "Básico", MessagesPerDay: 7, Price: 9.90},
	"premium":   {Name: "Premium", MessagesPerDay: 30, Price: 29.90},
	"ilimitado": {Name: "Ilimitado", MessagesPerDay: -1, Price: 69.00},
}

// DailyLimit returns the plan's message allowance, defaulting unknown
// plans to the free tier.
func DailyLimit(planID string) int {
	if p, ok := Plans[planID]; ok {
		return p.MessagesPerDay
	}
	return Plans[FreePlan].MessagesPerDay
}

func PlanExists(planID string) bool {
	_, ok := Plans[planID]
	return ok
}
