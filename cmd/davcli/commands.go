package main

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gitea.jw6.us/james/davclient/dav"
)

var lsCmd = &cobra.Command{
	Use:   "ls <url>",
	Short: "list the members of a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newResource(args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		defer w.Flush()

		names := []xml.Name{
			dav.PropResourceType,
			dav.PropDisplayName,
			dav.PropGetETag,
			dav.PropGetContentLength,
			dav.PropGetLastModified,
		}
		_, err = r.Propfind(cmd.Context(), 1, names, func(resp *dav.Response, rel dav.HrefRelation) error {
			if !resp.Ok() {
				return nil
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				resourceKind(resp),
				propString(resp, dav.PropGetContentLength),
				propString(resp, dav.PropGetETag),
				propString(resp, dav.PropGetLastModified),
				resp.Href.EscapedPath(),
				propString(resp, dav.PropDisplayName))
			return nil
		})
		return err
	},
}

func resourceKind(resp *dav.Response) string {
	rt, ok := resp.Prop(dav.PropResourceType).(*dav.ResourceType)
	if !ok {
		return "file"
	}
	switch {
	case rt.Calendar:
		return "calendar"
	case rt.AddressBook:
		return "addressbook"
	case rt.Principal:
		return "principal"
	case rt.Collection:
		return "dir"
	}
	return "file"
}

func propString(resp *dav.Response, name xml.Name) string {
	switch p := resp.Prop(name).(type) {
	case nil:
		return "-"
	case *dav.DisplayName:
		return p.Value
	case *dav.GetETag:
		return p.Value
	case *dav.GetContentLength:
		return strconv.FormatInt(p.Value, 10)
	case *dav.GetLastModified:
		if p.Time.IsZero() {
			return "-"
		}
		return p.Time.Format("2006-01-02 15:04")
	}
	return "-"
}

var catCmd = &cobra.Command{
	Use:   "cat <url>",
	Short: "write a resource body to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newResource(args[0])
		if err != nil {
			return err
		}
		return r.Get(cmd.Context(), "", nil, func(resp *http.Response) error {
			_, err := io.Copy(os.Stdout, resp.Body)
			return err
		})
	},
}

var (
	putIfMatch       string
	putIfNoneMatch   bool
	putContentType   string
	rmIfMatch        string
	noOverwrite      bool
	mkcalDisplayName string
)

var putCmd = &cobra.Command{
	Use:   "put <file> <url>",
	Short: "upload a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		r, err := newResource(args[1])
		if err != nil {
			return err
		}
		err = r.Put(cmd.Context(), body, dav.PutOptions{
			IfETag:          putIfMatch,
			IfNoneMatchStar: putIfNoneMatch,
			ContentType:     putContentType,
		}, func(resp *http.Response) error {
			if etag := resp.Header.Get("ETag"); etag != "" {
				fmt.Println(etag)
			}
			return nil
		})
		if errors.Is(err, dav.ErrPreconditionFailed) {
			return fmt.Errorf("precondition failed: remote resource changed")
		}
		return err
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <url>",
	Short: "delete a resource or collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newResource(args[0])
		if err != nil {
			return err
		}
		return r.Delete(cmd.Context(), rmIfMatch, "", nil)
	},
}

var mkcolCmd = &cobra.Command{
	Use:   "mkcol <url>",
	Short: "create a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newResource(args[0])
		if err != nil {
			return err
		}
		return r.MkCol(cmd.Context(), nil, nil)
	},
}

var mkcalendarCmd = &cobra.Command{
	Use:   "mkcalendar <url>",
	Short: "create a calendar collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newResource(args[0])
		if err != nil {
			return err
		}
		cal := &dav.DavCalendar{DavCollection: &dav.DavCollection{DavResource: r}}
		return cal.Create(cmd.Context(), dav.MkCalendarOptions{DisplayName: mkcalDisplayName}, nil)
	},
}

var mvCmd = &cobra.Command{
	Use:   "mv <src-url> <dst-url>",
	Short: "move a resource",
	Args:  cobra.ExactArgs(2),
	RunE:  func(cmd *cobra.Command, args []string) error { return copyOrMove(cmd, args, true) },
}

var cpCmd = &cobra.Command{
	Use:   "cp <src-url> <dst-url>",
	Short: "copy a resource",
	Args:  cobra.ExactArgs(2),
	RunE:  func(cmd *cobra.Command, args []string) error { return copyOrMove(cmd, args, false) },
}

func copyOrMove(cmd *cobra.Command, args []string, move bool) error {
	r, err := newResource(args[0])
	if err != nil {
		return err
	}
	dest, err := url.Parse(args[1])
	if err != nil {
		return fmt.Errorf("invalid destination: %w", err)
	}
	if move {
		return r.Move(cmd.Context(), dest, !noOverwrite, nil)
	}
	return r.Copy(cmd.Context(), dest, !noOverwrite, nil)
}

var discoverCmd = &cobra.Command{
	Use:   "discover <url>",
	Short: "probe server capabilities and locate the principal's homes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		r, err := newResource(args[0])
		if err != nil {
			return err
		}

		caps, err := r.Options(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("capabilities: %s\n", strings.Join(caps, ", "))

		principal, err := r.FindCurrentUserPrincipal(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("principal: %s\n", principal)

		ref, err := url.Parse(principal)
		if err != nil {
			return fmt.Errorf("invalid principal href: %w", err)
		}
		pr, err := newResource(r.Location.ResolveReference(ref).String())
		if err != nil {
			return err
		}
		if home, err := pr.FindCalendarHomeSet(ctx); err == nil {
			fmt.Printf("calendar home: %s\n", home)
		}
		if home, err := pr.FindAddressbookHomeSet(ctx); err == nil {
			fmt.Printf("addressbook home: %s\n", home)
		}
		return nil
	},
}

func init() {
	putCmd.Flags().StringVar(&putIfMatch, "if-match", "", "only overwrite when the remote etag matches")
	putCmd.Flags().BoolVar(&putIfNoneMatch, "if-none-match-star", false, "fail if the resource already exists")
	putCmd.Flags().StringVar(&putContentType, "content-type", "", "Content-Type of the uploaded body")
	rmCmd.Flags().StringVar(&rmIfMatch, "if-match", "", "only delete when the remote etag matches")
	mvCmd.Flags().BoolVar(&noOverwrite, "no-overwrite", false, "fail instead of replacing an existing destination")
	cpCmd.Flags().BoolVar(&noOverwrite, "no-overwrite", false, "fail instead of replacing an existing destination")
	mkcalendarCmd.Flags().StringVar(&mkcalDisplayName, "displayname", "", "display name of the new calendar")

	rootCmd.AddCommand(lsCmd, catCmd, putCmd, rmCmd, mkcolCmd, mkcalendarCmd, mvCmd, cpCmd, discoverCmd)
}
