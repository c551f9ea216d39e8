// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package format

import "go.astrophena.name/bountybot/cmd/bountybot/internal/db"

// Defaults are the templates a new database is seeded with.
var Defaults = []db.Text{
	{
		Kind:       db.KindMessage,
		Code:       IssueCreated,
		Text:       "{title}\n\n{labels}\n\n{summary}\n\n{rewards}",
		PreviewURL: "https://telegra.ph//file/f40e628291df5d24aca69.jpg",
	},
	{
		Kind:       db.KindMessage,
		Code:       IssueClosing,
		Text:       "{title}\n\n{labels}\n\n{summary}",
		PreviewURL: "https://telegra.ph//file/ea1f2ef5d8dbe5ecc222b.jpg",
	},
	{
		Kind:       db.KindMessage,
		Code:       IssueApproved,
		Text:       "{title}\n\n{labels}\n\n{summary}\n\n{rewards}",
		PreviewURL: "https://telegra.ph//file/d5072ef1dee916c1ef7df.jpg",
	},
	{
		Kind:       db.KindMessage,
		Code:       IssueCompleted,
		Text:       "{title}\n\n{labels}\n\n{summary}\n\n{assignees}",
		PreviewURL: "https://telegra.ph//file/f5c2c0f91c6f7f0c532c7.jpg",
	},
	{
		Kind: db.KindMessage,
		Code: WeeklyDigest,
		Text: "📊 **Weekly Update Digest!**\n\n" +
			"🔍 Active bounties: **{num_active}**\n" +
			"✅ Approved bounties: **{num_approved_assignee}**\n" +
			"🔄 Bounties seeking suggestions: **{num_suggested_opinions}**\n\n" +
			"📣 We value your feedback! Join the community discussion and participate in shaping the future. " +
			"Click the \"Create Your Own Bounty\" button to get started.\n\n" +
			"**Happy contributing!**",
		PreviewURL: "https://telegra.ph//file/fd6981d63b4b03c501c44.jpg",
	},
	{
		Kind:       db.KindMessage,
		Code:       TopContributors,
		Text:       "**🏆 TOP Contributors!**\n\n{top_contributors}",
		PreviewURL: "https://telegra.ph//file/25f1bb1c0d8abb1a33af4.jpg",
	},
	{
		Kind: db.KindMessage,
		Code: MainMenu,
		Text: "**TON Foundation actively supports teams and projects that enrich TON Ecosystem**, " +
			"whether by improving its core infrastructure, introducing innovative use cases, " +
			"or making it more developer-friendly.\n\n" +
			"> Available support initiatives are of two kinds: **Grants** and **Bounties**. " +
			"The **Grants program** is focused on providing milestone based financial support to teams " +
			"and projects building comprehensive, full-fledged products, while the **Bounties program** " +
			"serves as a community driven improvement suggestions and offers quick financial rewards " +
			"for individual tasks such as contributions to development tools, educational content, " +
			"and community resources.",
		PreviewURL: "https://github.com/ton-society/grants-and-bounties/raw/main/assets/cover.png",
	},
	{
		Kind:       db.KindMessage,
		Code:       UnknownError,
		Text:       "**An unexpected error occurred!**\n\nThe report has been sent to the developers.",
		PreviewURL: "https://telegra.ph//file/dccd34b9ae04c57f022db.jpg",
	},

	{Kind: db.KindButton, Code: CreateBounty, Text: "🪄 Create Your Own Bounty"},
	{Kind: db.KindButton, Code: IssueCreated, Text: "✏️ Leave Your Comment"},
	{Kind: db.KindButton, Code: IssueClosing, Text: "✏️ Leave Your Comment"},
	{Kind: db.KindButton, Code: IssueApproved, Text: "✏️ Leave Your Comment"},
	{Kind: db.KindButton, Code: IssueCompleted, Text: "✏️ Leave Your Comment"},
	{Kind: db.KindButton, Code: TopContributors, Text: "🏆 Top Contributors"},
}
