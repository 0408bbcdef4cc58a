package neo4j

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestExecuteQuery(t *testing.T) {
	Convey("Given a neo4j client and a test server", t, func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"results":[{"columns":["name","count"],"data":[{"row":["GDPR",3]},{"row":["MiFID",1]}]}],"errors":[]}`)
		}))
		defer ts.Close()

		client := New(ts.URL, "neo4j", "secret")
		rows, err := client.ExecuteQuery(context.Background(), "MATCH (r:Regulation) RETURN r.name as name, count(*) as count", nil, true)

		Convey("Then the rows should be keyed by column alias", func() {
			So(err, ShouldBeNil)
			So(len(rows), ShouldEqual, 2)
			So(rows[0].String("name"), ShouldEqual, "GDPR")
			So(rows[0].Int("count"), ShouldEqual, 3)
			So(rows[1].String("name"), ShouldEqual, "MiFID")
		})
	})
}

func TestExecuteQueryServerError(t *testing.T) {
	Convey("Given a server that reports a Cypher error", t, func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"results":[],"errors":[{"code":"Neo.ClientError.Statement.SyntaxError","message":"Invalid input"}]}`)
		}))
		defer ts.Close()

		client := New(ts.URL, "", "")
		rows, err := client.ExecuteQuery(context.Background(), "MATCH (", nil, true)

		Convey("Then a graph query error should be returned", func() {
			So(rows, ShouldBeNil)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "Invalid input")
		})
	})
}

func TestPing(t *testing.T) {
	Convey("Given a healthy server", t, func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"results":[{"columns":["1"],"data":[{"row":[1]}]}],"errors":[]}`)
		}))
		defer ts.Close()

		client := New(ts.URL, "", "")

		Convey("Then ping should succeed", func() {
			So(client.Ping(context.Background()), ShouldBeNil)
		})
	})
}
