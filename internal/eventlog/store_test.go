package eventlog_test

import (
	"context"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"wormhole-tracker/internal/eventlog"
	"wormhole-tracker/pkg/events"
	"wormhole-tracker/pkg/ids"
)

func TestEventLog(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "EventLog Suite")
}

func openTestStore(ctx context.Context, dir string) *eventlog.Store {
	store, err := eventlog.Open(ctx, filepath.Join(dir, "events.db"))
	Expect(err).NotTo(HaveOccurred())
	return store
}

var _ = Describe("Store", func() {
	var (
		ctx   context.Context
		store *eventlog.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = openTestStore(ctx, GinkgoT().TempDir())
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	Describe("Append", func() {
		It("assigns a strictly increasing global sequence", func() {
			characterID := ids.CharacterID(42)
			system := ids.SolarSystemID(30000142)

			first, err := store.AppendMovement(ctx, events.MovementEvent{
				CharacterID: characterID,
				ToSystemID:  system,
				ObservedAt:  ids.Now(),
				Source:      events.SourceEsi,
			}, ids.Now())
			Expect(err).NotTo(HaveOccurred())

			second, err := store.AppendMovement(ctx, events.MovementEvent{
				CharacterID: characterID,
				ToSystemID:  system,
				ObservedAt:  ids.Now(),
				Source:      events.SourceEsi,
			}, ids.Now())
			Expect(err).NotTo(HaveOccurred())

			Expect(second).To(BeNumerically(">", first))
		})

		It("makes an appended event visible to ReadOrdered", func() {
			seq, err := store.AppendMovement(ctx, events.MovementEvent{
				CharacterID: ids.CharacterID(1),
				ToSystemID:  ids.SolarSystemID(30002510),
				ObservedAt:  ids.Now(),
				Source:      events.SourceEsi,
			}, ids.Now())
			Expect(err).NotTo(HaveOccurred())

			records, err := store.ReadOrdered(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].GlobalSeq).To(Equal(seq))
			Expect(records[0].Envelope.EventType).To(Equal(events.CharacterMovedEventType))
		})
	})

	Describe("ReadSince", func() {
		It("returns only records after the given sequence", func() {
			var lastSeq int64
			for i := 0; i < 3; i++ {
				seq, err := store.AppendMovement(ctx, events.MovementEvent{
					CharacterID: ids.CharacterID(1),
					ToSystemID:  ids.SolarSystemID(int32(30000000 + i)),
					ObservedAt:  ids.Now(),
					Source:      events.SourceEsi,
				}, ids.Now())
				Expect(err).NotTo(HaveOccurred())
				if i == 0 {
					lastSeq = seq
				}
			}

			records, err := store.ReadSince(ctx, lastSeq)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
		})
	})

	Describe("ReadByStream", func() {
		It("scopes results to one stream key", func() {
			_, err := store.AppendMovement(ctx, events.MovementEvent{
				CharacterID: ids.CharacterID(1),
				ToSystemID:  ids.SolarSystemID(30000142),
				ObservedAt:  ids.Now(),
				Source:      events.SourceEsi,
			}, ids.Now())
			Expect(err).NotTo(HaveOccurred())

			_, err = store.AppendMovement(ctx, events.MovementEvent{
				CharacterID: ids.CharacterID(2),
				ToSystemID:  ids.SolarSystemID(30000142),
				ObservedAt:  ids.Now(),
				Source:      events.SourceEsi,
			}, ids.Now())
			Expect(err).NotTo(HaveOccurred())

			records, err := store.ReadByStream(ctx, ids.CharacterStreamKey(ids.CharacterID(1)))
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
		})
	})
})
