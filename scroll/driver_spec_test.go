package scroll_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/pevans/pagecat/extract"
	"github.com/pevans/pagecat/page"
	"github.com/pevans/pagecat/page/replay"
	"github.com/pevans/pagecat/scraper"
	"github.com/pevans/pagecat/scroll"
)

func frame(titles ...string) replay.Frame {
	var b strings.Builder
	b.WriteString(`<html><head><title>发现</title></head><body>`)
	for _, title := range titles {
		fmt.Fprintf(&b, `<section class="note-item" data-box-width="240" data-box-height="320">`+
			`<div class="title"><span>%s</span></div>`+
			`<div class="author"><span class="name">作者%s</span></div>`+
			`<span class="time"><span class="time">03-15</span></span>`+
			`<span class="like-wrapper"><span class="count">1.5万</span></span>`+
			`</section>`, title, title)
	}
	// A virtualized list keeps an off-screen placeholder in the DOM.
	b.WriteString(`<section class="note-item" data-box-width="0" data-box-height="0"><div class="title"><span>placeholder</span></div></section>`)
	b.WriteString(`</body></html>`)
	return replay.Frame{HTML: b.String(), Height: float64(len(titles)) * 400}
}

var _ = Describe("Driver", func() {
	var (
		logger   *logrus.Logger
		cfg      scroll.Config
		waits    []time.Duration
		progress []scroll.Progress
		noWait   scroll.WaitFunc
	)

	BeforeEach(func() {
		logger = logrus.New()
		logger.SetOutput(GinkgoWriter)
		logger.SetLevel(logrus.DebugLevel)

		cfg = scroll.DefaultConfig()
		waits = nil
		progress = nil
		noWait = func(ctx context.Context, d time.Duration) error {
			waits = append(waits, d)
			return context.Cause(ctx)
		}
	})

	run := func(p page.Page) (*scroll.Outcome, error) {
		d, err := scroll.NewDriver(p, extract.New(scraper.XiaohongshuProfile()), cfg,
			scroll.WithWait(noWait),
			scroll.WithLogger(logger),
			scroll.WithProgress(func(p scroll.Progress) { progress = append(progress, p) }),
		)
		Expect(err).NotTo(HaveOccurred())
		return d.Run(context.Background())
	}

	Context("when a virtualized feed recycles cards", func() {
		It("collects every post once in first-seen order", func() {
			p := replay.New("https://www.xiaohongshu.com/explore",
				frame("a", "b"),
				frame("b", "c", "d"),
				frame("d", "e"),
				frame("e", "f"),
			)

			out, err := run(p)
			Expect(err).NotTo(HaveOccurred())

			var titles []string
			for _, r := range out.Records {
				titles = append(titles, r.Title)
			}
			Expect(titles).To(Equal([]string{"b", "c", "d", "e", "f"}))
			Expect(titles).NotTo(ContainElement("placeholder"))
			Expect(out.Records[0].Likes).To(Equal(15000))
			Expect(out.Records[0].Time).To(HaveSuffix("-03-15 00:00"))
		})

		It("never reports more than 100 percent", func() {
			cfg.MaxTicks = 3
			_, err := run(replay.New("", frame("a"), frame("a", "b"), frame("c"), frame("d"), frame("e")))
			Expect(err).NotTo(HaveOccurred())

			Expect(progress).To(HaveLen(3))
			for _, p := range progress {
				Expect(p.Percent).To(BeNumerically("<=", 100))
			}
			Expect(progress[2].Percent).To(BeNumerically("==", 100))
		})
	})

	Context("when the page stops producing records", func() {
		It("slows down, stops and settles at the top", func() {
			p := replay.New("", frame("a"), frame("a", "b"))

			out, err := run(p)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.StopReason).To(Equal(scroll.StopNoNewRecords))
			Expect(p.Top()).To(BeZero())

			Expect(waits).NotTo(BeEmpty())
			for _, w := range waits[:len(waits)-1] {
				Expect(w).To(BeNumerically(">=", cfg.MinDelay))
				Expect(w).To(BeNumerically("<=", cfg.MaxDelay))
			}
			Expect(waits[len(waits)-1]).To(Equal(cfg.Settle))
		})
	})

	Context("when the page fails", func() {
		It("discards everything collected so far", func() {
			p := replay.New("", frame("a"), frame("a", "b"), frame("c"))
			p.FailScroll(2, errors.New("target closed"))

			out, err := run(p)
			Expect(err).To(MatchError(ContainSubstring("target closed")))
			Expect(out).To(BeNil())
		})

		It("surfaces a lost connection", func() {
			p := replay.New("", frame("a"))
			p.Fault(page.ErrOffline)
			noWait = func(ctx context.Context, _ time.Duration) error {
				<-ctx.Done()
				return context.Cause(ctx)
			}

			out, err := run(p)
			Expect(err).To(MatchError(page.ErrOffline))
			Expect(out).To(BeNil())
		})
	})

	Context("when no selector ever matches", func() {
		It("returns the diagnostic", func() {
			p := replay.New("https://www.xiaohongshu.com/website-login/captcha",
				replay.Frame{HTML: `<html><title>验证</title><body id="captcha">请完成验证</body></html>`, Height: 600})

			_, err := run(p)
			var mismatch *extract.MismatchError
			Expect(errors.As(err, &mismatch)).To(BeTrue())
			Expect(mismatch.Diagnostic.BodyID).To(Equal("captcha"))
			Expect(mismatch.Diagnostic.PageText).To(Equal("请完成验证"))
		})
	})
})
