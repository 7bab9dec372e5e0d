package controller_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/san-kum/turretctl/internal/controller"
)

var _ = Describe("sinks", func() {
	It("writes one JSON line per publish", func() {
		var buf bytes.Buffer
		sink := controller.NewJSONSink(&buf)
		stamp := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

		Expect(sink.PublishState("payload/joint_states", controller.JointState{
			Stamp: stamp, Name: []string{"aim_joint"}, Position: []float64{0.45},
		})).To(Succeed())
		Expect(sink.PublishCommand("turret/commands/joint_group", controller.JointGroupCommand{
			Name: "turret", Cmd: [2]float64{0.1, -0.2},
		})).To(Succeed())

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		Expect(lines).To(HaveLen(2))

		var state map[string]any
		Expect(json.Unmarshal([]byte(lines[0]), &state)).To(Succeed())
		Expect(state).To(HaveKeyWithValue("topic", "payload/joint_states"))
		Expect(state).To(HaveKeyWithValue("position", []any{0.45}))

		var cmd map[string]any
		Expect(json.Unmarshal([]byte(lines[1]), &cmd)).To(Succeed())
		Expect(cmd).To(HaveKeyWithValue("name", "turret"))
		Expect(cmd).To(HaveKeyWithValue("cmd", []any{0.1, -0.2}))
		Expect(cmd).NotTo(HaveKey("stamp"))
	})

	It("fans out to every sink in order", func() {
		a, b := &recorder{}, &recorder{}
		states := controller.StateSinks{a, controller.LogSink{Logger: zap.NewNop()}, b}
		Expect(states.PublishState("t", controller.JointState{Name: []string{"pan"}})).To(Succeed())
		Expect(a.stateCount()).To(Equal(1))
		Expect(b.stateCount()).To(Equal(1))
	})

	It("keeps publishing past a failing sink and reports its error", func() {
		a := &recorder{}
		bad := &recorder{err: errPublish}

		commands := controller.CommandSinks{bad, a}
		err := commands.PublishCommand("t", controller.JointGroupCommand{Cmd: [2]float64{0.1, 0.2}})
		Expect(errors.Is(err, errPublish)).To(BeTrue())
		Expect(a.commandCount()).To(Equal(1))
		Expect(bad.commandCount()).To(Equal(1))

		states := controller.StateSinks{bad, a, &recorder{err: errors.New("closed")}}
		err = states.PublishState("t", controller.JointState{})
		Expect(errors.Is(err, errPublish)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("closed"))
		Expect(a.stateCount()).To(Equal(1))
	})
})
