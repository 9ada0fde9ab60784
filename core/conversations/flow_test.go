package conversations_test

import (
	"errors"
	"time"

	. "github.com/mudler/remindbot/core/conversations"
	"github.com/mudler/remindbot/core/scheduler"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Flow", func() {
	var (
		creator *fakeCreator
		clock   *fakeClock
		flow    *Flow
	)

	BeforeEach(func() {
		creator = &fakeCreator{}
		clock = &fakeClock{now: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
		flow = NewFlow(creator, WithDraftTTL(30*time.Minute), WithFlowClock(clock.Now))
	})

	It("collects time, text and policy, then creates the reminder", func() {
		Expect(flow.Step(1)).To(Equal(StepIdle))

		resp := flow.Start(1)
		Expect(resp.Text).To(ContainSubstring("HH:MM"))
		Expect(flow.Step(1)).To(Equal(StepAwaitingTime))

		resp, ok := flow.Input(1, "9:05")
		Expect(ok).To(BeTrue())
		Expect(resp.Text).To(ContainSubstring("What should I remind you about"))
		Expect(flow.Step(1)).To(Equal(StepAwaitingTask))

		resp, ok = flow.Input(1, "  water the plants ")
		Expect(ok).To(BeTrue())
		Expect(flow.Step(1)).To(Equal(StepAwaitingRepeat))
		Expect(resp.Buttons).To(HaveLen(len(scheduler.Policies) + 1))
		Expect(resp.Buttons[0][0].Data).To(Equal("repeat_daily"))

		resp, ok = flow.Input(1, "repeat_weekdays")
		Expect(ok).To(BeTrue())
		Expect(resp.Text).To(ContainSubstring("09:05 - water the plants (weekdays)"))
		Expect(flow.Step(1)).To(Equal(StepIdle))

		Expect(creator.Calls()).To(Equal([]createCall{{
			OwnerID:   1,
			Text:      "water the plants",
			TimeOfDay: scheduler.TimeOfDay{Hour: 9, Minute: 5},
			Policy:    scheduler.PolicyWeekdays,
		}}))
	})

	It("re-prompts on an invalid time without changing step", func() {
		flow.Start(1)
		for _, in := range []string{"25:00", "noon", "12:5", ""} {
			resp, ok := flow.Input(1, in)
			Expect(ok).To(BeTrue())
			Expect(resp.Text).To(ContainSubstring("Invalid time format"))
			Expect(flow.Step(1)).To(Equal(StepAwaitingTime))
		}
		_, ok := flow.Input(1, "23:59")
		Expect(ok).To(BeTrue())
		Expect(flow.Step(1)).To(Equal(StepAwaitingTask))
	})

	It("refuses empty task text", func() {
		flow.Start(1)
		flow.Input(1, "08:00")
		resp, ok := flow.Input(1, "   ")
		Expect(ok).To(BeTrue())
		Expect(resp.Text).To(ContainSubstring("cannot be empty"))
		Expect(flow.Step(1)).To(Equal(StepAwaitingTask))
	})

	It("accepts typed policy names and re-prompts on unknown ones", func() {
		flow.Start(1)
		flow.Input(1, "08:00")
		flow.Input(1, "gym")

		resp, ok := flow.Input(1, "hourly")
		Expect(ok).To(BeTrue())
		Expect(resp.Text).To(ContainSubstring("Pick one"))
		Expect(flow.Step(1)).To(Equal(StepAwaitingRepeat))
		Expect(creator.Calls()).To(BeEmpty())

		_, ok = flow.Input(1, "Weekends")
		Expect(ok).To(BeTrue())
		Expect(creator.Calls()).To(HaveLen(1))
		Expect(creator.Calls()[0].Policy).To(Equal(scheduler.PolicyWeekends))
	})

	DescribeTable("returns to idle on abort from any step",
		func(steps []string, abort string) {
			flow.Start(1)
			for _, s := range steps {
				flow.Input(1, s)
			}
			Expect(flow.Step(1)).NotTo(Equal(StepIdle))

			_, ok := flow.Input(1, abort)
			Expect(ok).To(BeFalse())
			Expect(flow.Step(1)).To(Equal(StepIdle))
			Expect(creator.Calls()).To(BeEmpty())
		},
		Entry("awaiting time, cancel", []string{}, "cancel"),
		Entry("awaiting task, back", []string{"10:00"}, "back"),
		Entry("awaiting repeat, main menu", []string{"10:00", "stretch"}, "main_menu"),
	)

	It("keeps drafts of different owners apart", func() {
		flow.Start(1)
		flow.Start(2)
		flow.Input(1, "07:00")
		Expect(flow.Step(1)).To(Equal(StepAwaitingTask))
		Expect(flow.Step(2)).To(Equal(StepAwaitingTime))
	})

	It("does not consume input without a draft", func() {
		_, ok := flow.Input(1, "09:00")
		Expect(ok).To(BeFalse())
	})

	It("discards drafts left idle too long", func() {
		flow.Start(1)
		flow.Input(1, "07:00")
		clock.Advance(31 * time.Minute)

		Expect(flow.Step(1)).To(Equal(StepIdle))
		_, ok := flow.Input(1, "late answer")
		Expect(ok).To(BeFalse())
	})

	It("warns when the reminder could not be saved", func() {
		creator.err = scheduler.ErrPersistence
		flow.Start(1)
		flow.Input(1, "07:00")
		flow.Input(1, "pills")
		resp, ok := flow.Input(1, "daily")
		Expect(ok).To(BeTrue())
		Expect(resp.Text).To(ContainSubstring("Reminder set"))
		Expect(resp.Text).To(ContainSubstring("could not be saved"))
		Expect(flow.Step(1)).To(Equal(StepIdle))
	})

	It("reports other creation failures and resets", func() {
		creator.err = errors.New("boom")
		flow.Start(1)
		flow.Input(1, "07:00")
		flow.Input(1, "pills")
		resp, ok := flow.Input(1, "once")
		Expect(ok).To(BeTrue())
		Expect(resp.Text).To(ContainSubstring("Could not create"))
		Expect(flow.Step(1)).To(Equal(StepIdle))
	})

	It("resets on request", func() {
		flow.Start(1)
		flow.Reset(1)
		Expect(flow.Step(1)).To(Equal(StepIdle))
	})

	It("keeps serving other owners while a create is in progress", func() {
		entered := make(chan struct{})
		release := make(chan struct{})
		creator.wait = func(ownerID int64) {
			if ownerID == 1 {
				close(entered)
				<-release
			}
		}

		flow.Start(1)
		flow.Input(1, "09:00")
		flow.Input(1, "stretch")

		done := make(chan Response, 1)
		go func() {
			resp, _ := flow.Input(1, "daily")
			done <- resp
		}()
		Eventually(entered).Should(BeClosed())

		other := make(chan struct{})
		go func() {
			defer close(other)
			flow.Start(2)
			flow.Input(2, "10:00")
			flow.Reset(3)
		}()
		Eventually(other, 500*time.Millisecond).Should(BeClosed())
		Expect(flow.Step(2)).To(Equal(StepAwaitingTask))
		Consistently(done, 50*time.Millisecond).ShouldNot(Receive())

		close(release)
		var resp Response
		Eventually(done).Should(Receive(&resp))
		Expect(resp.Text).To(ContainSubstring("stretch (daily)"))
		Expect(flow.Step(1)).To(Equal(StepIdle))
	})
})
