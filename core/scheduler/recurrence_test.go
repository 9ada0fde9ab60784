package scheduler_test

import (
	"fmt"
	"time"

	"github.com/mudler/remindbot/core/scheduler"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/robfig/cron/v3"
)

var _ = Describe("NextFireTime", func() {
	// 2024-01-01 is a Monday
	monday := func(hour, minute int) time.Time {
		return time.Date(2024, 1, 1, hour, minute, 0, 0, time.UTC)
	}
	at9 := scheduler.TimeOfDay{Hour: 9, Minute: 0}

	DescribeTable("scenarios",
		func(policy scheduler.Policy, ref time.Time, expected time.Time) {
			next, err := scheduler.NextFireTime(at9, policy, ref, time.UTC)
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(Equal(expected))
		},
		Entry("daily, later today", scheduler.PolicyDaily, monday(8, 0), monday(9, 0)),
		Entry("daily, already passed", scheduler.PolicyDaily, monday(10, 0), time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)),
		Entry("daily, exactly now rolls over", scheduler.PolicyDaily, monday(9, 0), time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)),
		Entry("once, later today", scheduler.PolicyOnce, monday(8, 59), monday(9, 0)),
		Entry("once, already passed", scheduler.PolicyOnce, monday(9, 1), time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)),
		Entry("weekends on a monday", scheduler.PolicyWeekends, monday(9, 0), time.Date(2024, 1, 6, 9, 0, 0, 0, time.UTC)),
		Entry("weekends on saturday evening", scheduler.PolicyWeekends, time.Date(2024, 1, 6, 20, 0, 0, 0, time.UTC), time.Date(2024, 1, 7, 9, 0, 0, 0, time.UTC)),
		Entry("weekends on sunday evening", scheduler.PolicyWeekends, time.Date(2024, 1, 7, 20, 0, 0, 0, time.UTC), time.Date(2024, 1, 13, 9, 0, 0, 0, time.UTC)),
		Entry("weekdays on friday evening skips to monday", scheduler.PolicyWeekdays, time.Date(2024, 1, 5, 20, 0, 0, 0, time.UTC), time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)),
		Entry("weekdays on saturday", scheduler.PolicyWeekdays, time.Date(2024, 1, 6, 8, 0, 0, 0, time.UTC), time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)),
		Entry("weekdays on monday morning", scheduler.PolicyWeekdays, monday(7, 0), monday(9, 0)),
	)

	It("interprets the time of day in the configured zone", func() {
		zone := time.FixedZone("UTC+2", 2*60*60)
		// 06:30 UTC is 08:30 in the zone
		next, err := scheduler.NextFireTime(at9, scheduler.PolicyDaily, monday(6, 30), zone)
		Expect(err).NotTo(HaveOccurred())
		Expect(next.Location()).To(Equal(zone))
		Expect(next).To(BeTemporally("==", monday(7, 0)))
	})

	It("keeps the wall clock time across a DST change", func() {
		loc, err := time.LoadLocation("Europe/Kyiv")
		Expect(err).NotTo(HaveOccurred())

		// clocks go forward on 2024-03-31
		ref := time.Date(2024, 3, 30, 10, 0, 0, 0, loc)
		next, err := scheduler.NextFireTime(at9, scheduler.PolicyDaily, ref, loc)
		Expect(err).NotTo(HaveOccurred())
		Expect(next).To(Equal(time.Date(2024, 3, 31, 9, 0, 0, 0, loc)))
		Expect(next.Hour()).To(Equal(9))
	})

	Context("properties", func() {
		refs := func() []time.Time {
			var out []time.Time
			for t := monday(0, 7); t.Before(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)); t = t.Add(7*time.Hour + 13*time.Minute) {
				out = append(out, t)
			}
			return out
		}()
		times := []scheduler.TimeOfDay{
			{Hour: 0, Minute: 0}, {Hour: 6, Minute: 45}, {Hour: 9, Minute: 0}, {Hour: 12, Minute: 30}, {Hour: 23, Minute: 59},
		}

		It("returns an instant strictly after the reference that matches the policy", func() {
			for _, p := range scheduler.Policies {
				for _, tod := range times {
					for _, ref := range refs {
						next, err := scheduler.NextFireTime(tod, p, ref, time.UTC)
						Expect(err).NotTo(HaveOccurred())
						Expect(next).To(BeTemporally(">", ref))
						Expect(next.Hour()).To(Equal(tod.Hour))
						Expect(next.Minute()).To(Equal(tod.Minute))
						Expect(p.Matches(next.Weekday())).To(BeTrue(), "%s on %s", p, next.Weekday())
					}
				}
			}
		})

		It("never leaves more than three days between consecutive occurrences", func() {
			for _, p := range []scheduler.Policy{scheduler.PolicyWeekdays, scheduler.PolicyWeekends} {
				for _, ref := range refs {
					prev, err := scheduler.NextFireTime(at9, p, ref, time.UTC)
					Expect(err).NotTo(HaveOccurred())
					for range 20 {
						next, err := scheduler.NextFireTime(at9, p, prev, time.UTC)
						Expect(err).NotTo(HaveOccurred())
						Expect(next.Sub(prev)).To(BeNumerically("<=", 6*24*time.Hour))
						if p == scheduler.PolicyWeekdays {
							Expect(next.Sub(prev)).To(BeNumerically("<=", 3*24*time.Hour))
						}
						prev = next
					}
				}
			}
		})

		It("agrees with the equivalent cron schedule", func() {
			dow := map[scheduler.Policy]string{
				scheduler.PolicyDaily:    "*",
				scheduler.PolicyWeekdays: "1-5",
				scheduler.PolicyWeekends: "0,6",
			}
			for p, field := range dow {
				for _, tod := range times {
					sched, err := cron.ParseStandard(fmt.Sprintf("%d %d * * %s", tod.Minute, tod.Hour, field))
					Expect(err).NotTo(HaveOccurred())
					for _, ref := range refs {
						next, err := scheduler.NextFireTime(tod, p, ref, time.UTC)
						Expect(err).NotTo(HaveOccurred())
						Expect(next).To(BeTemporally("==", sched.Next(ref)), "%s %s from %s", p, tod, ref)
					}
				}
			}
		})
	})
})

var _ = Describe("NextFireTime input checks", func() {
	It("rejects an unknown policy or an out of range time", func() {
		ref := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
		_, err := scheduler.NextFireTime(scheduler.TimeOfDay{Hour: 9}, scheduler.Policy("hourly"), ref, time.UTC)
		Expect(err).To(MatchError(scheduler.ErrValidation))
		_, err = scheduler.NextFireTime(scheduler.TimeOfDay{Hour: 24}, scheduler.PolicyDaily, ref, time.UTC)
		Expect(err).To(MatchError(scheduler.ErrValidation))
	})
})

var _ = Describe("ParseTimeOfDay", func() {
	DescribeTable("valid input",
		func(in string, expected scheduler.TimeOfDay) {
			tod, err := scheduler.ParseTimeOfDay(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(tod).To(Equal(expected))
		},
		Entry("padded", "09:05", scheduler.TimeOfDay{Hour: 9, Minute: 5}),
		Entry("single digit hour", "9:05", scheduler.TimeOfDay{Hour: 9, Minute: 5}),
		Entry("surrounding spaces", "  23:59 ", scheduler.TimeOfDay{Hour: 23, Minute: 59}),
		Entry("midnight", "00:00", scheduler.TimeOfDay{}),
	)

	DescribeTable("invalid input",
		func(in string) {
			_, err := scheduler.ParseTimeOfDay(in)
			Expect(err).To(MatchError(scheduler.ErrValidation))
		},
		Entry("hour out of range", "24:00"),
		Entry("signed hour", "+9:30"),
		Entry("negative hour", "-0:30"),
		Entry("signed minute", "09:+5"),
		Entry("minute out of range", "12:60"),
		Entry("no separator", "1200"),
		Entry("single digit minute", "12:5"),
		Entry("words", "noon"),
		Entry("empty", ""),
		Entry("negative", "-1:30"),
	)

	It("formats zero padded", func() {
		Expect(scheduler.TimeOfDay{Hour: 7, Minute: 3}.String()).To(Equal("07:03"))
	})
})

var _ = Describe("ParsePolicy", func() {
	It("accepts names and button values", func() {
		for in, expected := range map[string]scheduler.Policy{
			"daily":           scheduler.PolicyDaily,
			"Weekdays":        scheduler.PolicyWeekdays,
			"repeat_weekends": scheduler.PolicyWeekends,
			" once ":          scheduler.PolicyOnce,
		} {
			p, err := scheduler.ParsePolicy(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(Equal(expected))
		}
	})

	It("rejects unknown policies", func() {
		_, err := scheduler.ParsePolicy("hourly")
		Expect(err).To(MatchError(scheduler.ErrValidation))
	})
})
