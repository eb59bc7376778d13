// Copyright 2018 The Mangos Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package zx_test

import (
	"testing"
	"time"

	zx "github.com/pjkundert/zeromq3-0"
	"github.com/pjkundert/zeromq3-0/protocol/pub"
	"github.com/pjkundert/zeromq3-0/protocol/sub"
	"github.com/pjkundert/zeromq3-0/protocol/xpub"
	"github.com/pjkundert/zeromq3-0/protocol/xsub"

	. "github.com/smartystreets/goconvey/convey"
)

func publishString(pubSock zx.Socket, body string) error {
	m := zx.NewMessage(len(body))
	m.Body = append(m.Body, []byte(body)...)
	return pubSock.Send(m, zx.FlagDontWait)
}

func recvString(s zx.Socket) (string, error) {
	m, err := s.Recv(zx.FlagDontWait)
	if err != nil {
		return "", err
	}
	return string(m.Body), nil
}

func subscribe(s zx.Socket, prefix string) {
	So(s.SetOption(zx.OptionSubscribe, []byte(prefix)), ShouldBeNil)
}

func unsubscribe(s zx.Socket, prefix string) {
	So(s.SetOption(zx.OptionUnsubscribe, []byte(prefix)), ShouldBeNil)
}

// TestXsubXpubForwarding builds the pub-xsub-xpub-sub bridge topology and
// exercises the subscribe/publish/unsubscribe behavior, grounded on the
// teacher's test/busdevice_test.go bus-device fixture.
func TestXsubXpubForwarding(t *testing.T) {
	Convey("Testing a pub/xsub/xpub/sub forwarding bridge", t, func() {
		ctx := zx.NewContext(0)

		p := pub.NewSocket(ctx)
		So(p.Bind("inproc://scenario-pub"), ShouldBeNil)

		xs := xsub.NewSocket(ctx)
		So(xs.Connect("inproc://scenario-pub"), ShouldBeNil)

		xp := xpub.NewSocket(ctx)
		So(xp.Bind("inproc://scenario-xpub"), ShouldBeNil)

		dev, err := zx.NewDevice(xs, xp)
		So(err, ShouldBeNil)
		So(dev.Start(), ShouldBeNil)

		leaf := sub.NewSocket(ctx)
		So(leaf.Connect("inproc://scenario-xpub"), ShouldBeNil)
		leafB := sub.NewSocket(ctx)
		So(leafB.Connect("inproc://scenario-xpub"), ShouldBeNil)
		leafBoo := sub.NewSocket(ctx)
		So(leafBoo.Connect("inproc://scenario-xpub"), ShouldBeNil)

		// The other leaf, subl1a in spec.md §8's naming, attaches
		// directly to pub — "upstream of xsub" — rather than through
		// the xsub/xpub bridge.
		leafDirect := sub.NewSocket(ctx)
		So(leafDirect.Connect("inproc://scenario-pub"), ShouldBeNil)

		subscribe(leaf, "")
		subscribe(leafB, "B")
		subscribe(leafBoo, "BOO")
		subscribe(leafDirect, "BO")

		// No synchronous bind/subscribe handshake exists in this model;
		// give the control-message absorption time to settle, matching
		// the teacher's own "dial is not synchronous" sleep.
		time.Sleep(20 * time.Millisecond)

		Convey("Publishing a matching body reaches every covering leaf", func() {
			So(publishString(p, "BOOP"), ShouldBeNil)
			time.Sleep(10 * time.Millisecond)

			body, err := recvString(leaf)
			So(err, ShouldBeNil)
			So(body, ShouldEqual, "BOOP")

			body, err = recvString(leafB)
			So(err, ShouldBeNil)
			So(body, ShouldEqual, "BOOP")

			body, err = recvString(leafBoo)
			So(err, ShouldBeNil)
			So(body, ShouldEqual, "BOOP")

			body, err = recvString(leafDirect)
			So(err, ShouldBeNil)
			So(body, ShouldEqual, "BOOP")
		})

		Convey("Publishing an empty body reaches only the empty-prefix subscriber", func() {
			So(publishString(p, ""), ShouldBeNil)
			time.Sleep(10 * time.Millisecond)

			body, err := recvString(leaf)
			So(err, ShouldBeNil)
			So(body, ShouldEqual, "")

			_, err = recvString(leafB)
			So(err, ShouldBeError)
			_, err = recvString(leafBoo)
			So(err, ShouldBeError)
		})

		Convey("Publishing BO reaches every leaf whose prefix it covers", func() {
			So(publishString(p, "BO"), ShouldBeNil)
			time.Sleep(10 * time.Millisecond)

			// "BO" starts with both "" (leaf) and "B" (leafB), but not
			// with "BOO" (leafBoo, which needs a third byte "O").
			body, err := recvString(leaf)
			So(err, ShouldBeNil)
			So(body, ShouldEqual, "BO")

			body, err = recvString(leafB)
			So(err, ShouldBeNil)
			So(body, ShouldEqual, "BO")

			_, err = recvString(leafBoo)
			So(err, ShouldBeError)

			body, err = recvString(leafDirect)
			So(err, ShouldBeNil)
			So(body, ShouldEqual, "BO")
		})

		Convey("Subscription counts are visible at both pub and xpub", func() {
			So(xp.HasSubs([]byte("")), ShouldEqual, 1)
			So(xp.HasSubs([]byte("B")), ShouldEqual, 1)
			So(xp.HasSubs([]byte("BOO")), ShouldEqual, 1)
			// xpub never sees subl1a's direct-to-pub subscription.
			So(xp.HasSubs([]byte("BO")), ShouldEqual, 0)

			// pub sees the forwarded bridge subscriptions under xsub's
			// single pipe, plus subl1a's own direct connection.
			So(p.HasSubs([]byte("")), ShouldEqual, 1)
			So(p.HasSubs([]byte("BO")), ShouldEqual, 1)
		})

		Convey("Unsubscribe quiescence: after UNSUBSCRIBE \"\", that leaf stops receiving", func() {
			unsubscribe(leaf, "")
			time.Sleep(10 * time.Millisecond)

			So(publishString(p, "BOOP"), ShouldBeNil)
			time.Sleep(10 * time.Millisecond)

			_, err := recvString(leaf)
			So(err, ShouldBeError)

			body, err := recvString(leafB)
			So(err, ShouldBeNil)
			So(body, ShouldEqual, "BOOP")

			body, err = recvString(leafBoo)
			So(err, ShouldBeNil)
			So(body, ShouldEqual, "BOOP")
		})

		dev.Stop()
	})
}
