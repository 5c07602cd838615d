package main

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"gitea.jw6.us/james/davclient/dav"
	"gitea.jw6.us/james/davclient/internal/vobject"
)

var (
	eventsFrom     string
	eventsTo       string
	addSummary     string
	addStart       string
	addEnd         string
	addContactName string
	addEmail       string
)

var eventsCmd = &cobra.Command{
	Use:   "events <calendar-url>",
	Short: "list the events in a calendar",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newResource(args[0])
		if err != nil {
			return err
		}
		cal := &dav.DavCalendar{DavCollection: &dav.DavCollection{DavResource: r}}

		var tr *dav.TimeRange
		if eventsFrom != "" || eventsTo != "" {
			tr = &dav.TimeRange{}
			if eventsFrom != "" {
				if tr.Start, err = parseLocalTime(eventsFrom); err != nil {
					return fmt.Errorf("invalid --from: %w", err)
				}
			}
			if eventsTo != "" {
				if tr.End, err = parseLocalTime(eventsTo); err != nil {
					return fmt.Errorf("invalid --to: %w", err)
				}
			}
		}

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		defer w.Flush()

		_, err = cal.CalendarQuery(cmd.Context(), "VEVENT", tr,
			[]xml.Name{dav.PropGetETag, dav.PropCalendarData},
			func(resp *dav.Response, rel dav.HrefRelation) error {
				data, ok := resp.Prop(dav.PropCalendarData).(*dav.CalendarData)
				if !ok {
					return nil
				}
				for _, ev := range vobject.Components(data.Data, "VEVENT") {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
						vobject.PropValue(ev, "UID"),
						vobject.PropValue(ev, "DTSTART"),
						vobject.Unescape(vobject.PropValue(ev, "SUMMARY")),
						resp.Href.EscapedPath())
				}
				return nil
			})
		return err
	},
}

var contactsCmd = &cobra.Command{
	Use:   "contacts <addressbook-url>",
	Short: "list the contacts in an address book",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newResource(args[0])
		if err != nil {
			return err
		}
		ab := &dav.DavAddressBook{DavCollection: &dav.DavCollection{DavResource: r}}

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		defer w.Flush()

		_, err = ab.AddressbookQuery(cmd.Context(), nil,
			[]xml.Name{dav.PropGetETag, dav.PropAddressData},
			func(resp *dav.Response, rel dav.HrefRelation) error {
				data, ok := resp.Prop(dav.PropAddressData).(*dav.AddressData)
				if !ok {
					return nil
				}
				for _, card := range vobject.Components(data.Data, "VCARD") {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
						vobject.PropValue(card, "UID"),
						vobject.Unescape(vobject.PropValue(card, "FN")),
						strings.Join(vobject.PropValues(card, "EMAIL"), ","),
						resp.Href.EscapedPath())
				}
				return nil
			})
		return err
	},
}

var addEventCmd = &cobra.Command{
	Use:   "add-event <calendar-url>",
	Short: "create a simple event in a calendar",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := parseLocalTime(addStart)
		if err != nil {
			return fmt.Errorf("invalid --start: %w", err)
		}
		var end time.Time
		if addEnd != "" {
			if end, err = parseLocalTime(addEnd); err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}
		}

		uid := vobject.NewUID()
		r, err := newResource(memberURL(args[0], uid+".ics"))
		if err != nil {
			return err
		}
		err = r.Put(cmd.Context(), []byte(vobject.BuildEvent(uid, addSummary, start, end)),
			dav.PutOptions{ContentType: "text/calendar; charset=utf-8", IfNoneMatchStar: true}, nil)
		if err != nil {
			return err
		}
		fmt.Println(r.Location)
		return nil
	},
}

var addContactCmd = &cobra.Command{
	Use:   "add-contact <addressbook-url>",
	Short: "create a contact in an address book",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uid := vobject.NewUID()
		r, err := newResource(memberURL(args[0], uid+".vcf"))
		if err != nil {
			return err
		}
		err = r.Put(cmd.Context(), []byte(vobject.BuildCard(uid, addContactName, addEmail)),
			dav.PutOptions{ContentType: "text/vcard; charset=utf-8", IfNoneMatchStar: true}, nil)
		if err != nil {
			return err
		}
		fmt.Println(r.Location)
		return nil
	},
}

func memberURL(collection, name string) string {
	return strings.TrimSuffix(collection, "/") + "/" + name
}

func parseLocalTime(value string) (time.Time, error) {
	layouts := []string{"2006-01-02T15:04", "2006-01-02T15:04:05", "2006-01-02"}
	var lastErr error
	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, value, time.Local)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func init() {
	eventsCmd.Flags().StringVar(&eventsFrom, "from", "", "only report events starting after this time")
	eventsCmd.Flags().StringVar(&eventsTo, "to", "", "only report events starting before this time")
	addEventCmd.Flags().StringVar(&addSummary, "summary", "", "event summary")
	addEventCmd.Flags().StringVar(&addStart, "start", "", "event start, e.g. 2024-06-01T09:00")
	addEventCmd.Flags().StringVar(&addEnd, "end", "", "event end")
	_ = addEventCmd.MarkFlagRequired("summary")
	_ = addEventCmd.MarkFlagRequired("start")
	addContactCmd.Flags().StringVar(&addContactName, "name", "", "contact display name")
	addContactCmd.Flags().StringVar(&addEmail, "email", "", "contact email address")
	_ = addContactCmd.MarkFlagRequired("name")

	rootCmd.AddCommand(eventsCmd, contactsCmd, addEventCmd, addContactCmd)
}
