package seeder

import (
	"math"
	"math/rand"
	"time"
)

type User struct {
	ID         int
	Country    string
	DeviceType string
	SignupDate time.Time
}

type Subscription struct {
	ID        int
	UserID    int
	Plan      string
	StartDate time.Time
	EndDate   *time.Time
}

type Payment struct {
	ID          int
	UserID      int
	AmountUSD   float64
	PaymentDate time.Time
}

type Session struct {
	ID              int
	UserID          int
	ActivityType    string
	DurationMinutes int
	SessionDate     time.Time
}

type Dataset struct {
	Users         []User
	Subscriptions []Subscription
	Payments      []Payment
	Sessions      []Session
}

var (
	countries = []string{
		"United States", "Germany", "France", "Spain", "Netherlands",
		"United Kingdom", "Canada", "Brazil", "Japan", "Australia",
	}
	deviceTypes   = []string{"desktop", "mobile", "tablet"}
	plans         = []string{"basic", "pro", "enterprise"}
	planPrices    = map[string]float64{"basic": 9.99, "pro": 29.99, "enterprise": 99.99}
	activityTypes = []string{"browse", "search", "watch", "upload"}
)

// Generate builds a full synthetic dataset from the seed in cfg. The same
// config and reference time always yield the same rows. Monthly signups
// grow over the window so revenue and signup forecasts trend upward.
func Generate(cfg Config, now time.Time) Dataset {
	rnd := rand.New(rand.NewSource(cfg.Seed))
	firstMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -cfg.Months+1, 0)

	perMonth := monthlySignups(cfg.Users, cfg.Months)

	var ds Dataset
	userID, subID, payID, sessID := 0, 0, 0, 0

	for m := 0; m < cfg.Months; m++ {
		monthStart := firstMonth.AddDate(0, m, 0)
		for i := 0; i < perMonth[m]; i++ {
			userID++
			u := User{
				ID:         userID,
				Country:    pickOne(rnd, countries),
				DeviceType: pickOne(rnd, deviceTypes),
				SignupDate: monthStart.AddDate(0, 0, rnd.Intn(28)),
			}
			ds.Users = append(ds.Users, u)

			if rnd.Float64() < 0.65 {
				subID++
				sub := Subscription{
					ID:        subID,
					UserID:    u.ID,
					Plan:      pickOne(rnd, plans),
					StartDate: u.SignupDate,
				}
				if rnd.Float64() < 0.2 {
					end := sub.StartDate.AddDate(0, 1+rnd.Intn(6), 0)
					if end.Before(now) {
						sub.EndDate = &end
					}
				}
				ds.Subscriptions = append(ds.Subscriptions, sub)
			}
		}
	}

	for _, sub := range ds.Subscriptions {
		price := planPrices[sub.Plan]
		billing := sub.StartDate
		for !billing.After(now) {
			if sub.EndDate != nil && billing.After(*sub.EndDate) {
				break
			}
			payID++
			ds.Payments = append(ds.Payments, Payment{
				ID:          payID,
				UserID:      sub.UserID,
				AmountUSD:   round2(price * (0.95 + rnd.Float64()*0.1)),
				PaymentDate: billing,
			})
			billing = billing.AddDate(0, 1, 0)
		}
	}

	for _, u := range ds.Users {
		active := u.SignupDate
		for !active.After(now) {
			visits := 1 + rnd.Intn(6)
			for v := 0; v < visits; v++ {
				sessID++
				ds.Sessions = append(ds.Sessions, Session{
					ID:              sessID,
					UserID:          u.ID,
					ActivityType:    pickOne(rnd, activityTypes),
					DurationMinutes: 2 + rnd.Intn(58),
					SessionDate:     active.AddDate(0, 0, rnd.Intn(28)),
				})
			}
			active = active.AddDate(0, 1, 0)
		}
	}

	return ds
}

// monthlySignups splits the user target across the window with a linear
// ramp, so the earliest month gets the fewest signups and the latest the
// most. Every month gets at least one user.
func monthlySignups(total, months int) []int {
	weights := make([]float64, months)
	var sum float64
	for m := range weights {
		weights[m] = 1 + float64(m)*0.15
		sum += weights[m]
	}
	counts := make([]int, months)
	assigned := 0
	for m := range counts {
		counts[m] = int(math.Round(weights[m] / sum * float64(total)))
		if counts[m] < 1 {
			counts[m] = 1
		}
		assigned += counts[m]
	}
	// Adjust the final month so the total stays close to the target.
	if diff := total - assigned; diff > 0 {
		counts[months-1] += diff
	}
	return counts
}

func pickOne(rnd *rand.Rand, values []string) string {
	return values[rnd.Intn(len(values))]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
