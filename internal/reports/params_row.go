package reports

// paramsRow holds the tt_params columns shared by every report screen.
type paramsRow struct {
	ProdsId       string  `json:"prods:id"`
	ProdsRowState string  `json:"prods:rowState"`
	FldId         int     `json:"fldid"`
	CompanyId     string  `json:"coid"`
	DivisionId    string  `json:"divid"`
	ActivityId    string  `json:"activityid"`
	TaskId        string  `json:"taskid"`
	TaskStatus    *string `json:"tasksts"`
	ReportId      string  `json:"rptid"`
	Pdf           string  `json:"pdf"`
	FormPrint     bool    `json:"formprt"`
	CsvOut        bool    `json:"csvout"`
	EmailOpt      string  `json:"emailopt"`
	EmailMe       bool    `json:"emailme"`
	UserEmail     string  `json:"useremail"`
	EmailPrinter  bool    `json:"emailprinter"`
	PrinterId     string  `json:"prtid"`
	DdpFlag       bool    `json:"ddpflg"`
	DdpQuota      int     `json:"ddpquo"`
	SubmitOpt     string  `json:"submitopt"`
	EmailStaff    bool    `json:"email_staff"`
	StaffEmail    string  `json:"staff_email"`
	EmailOther    bool    `json:"email_other"`
	OtherEmail    string  `json:"other_email"`
	Subject       string  `json:"subject"`
	Attn          string  `json:"attn"`
	EmailText     string  `json:"email_text"`
	EmailSig      string  `json:"email_signature"`
	EmailSigType  string  `json:"email_sig_type"`
}

// submittedParamsRow is the row as the screen sends it when "submit to
// CSV" is chosen.
func submittedParamsRow(company, division, activityId, subject string) paramsRow {
	return paramsRow{
		ProdsId:       "tt_paramsFldId1",
		ProdsRowState: "modified",
		FldId:         1,
		CompanyId:     company,
		DivisionId:    division,
		ActivityId:    activityId,
		CsvOut:        true,
		EmailOpt:      "n",
		SubmitOpt:     "p",
		Subject:       subject,
		EmailSigType:  "D",
	}
}

// originalParamsRow is the before image of the row, the screen's blank state.
func originalParamsRow(company, division string) paramsRow {
	return paramsRow{
		ProdsId:       "tt_paramsFldId1",
		ProdsRowState: "modified",
		FldId:         1,
		CompanyId:     company,
		DivisionId:    division,
	}
}
