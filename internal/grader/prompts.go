package grader

// System prompts for the three capability calls. Responses are requested as
// bare JSON matching the package's response shapes.
const (
	promptExtractRubric = `You are reading pages of a grading rubric. Extract every scoring point
as an item with its question label exactly as printed, a short description,
its maximum score, and any keyword hints. Respond with JSON:
{"items":[{"label":"","description":"","max_score":0,"keywords":[]}],"notes":[]}`

	promptScanPage = `You are skimming one page of a student answer sheet. List the question
labels visible on the page in reading order, and the student's name if one
is legible. Respond with JSON:
{"labels":[],"student_name":""}`

	promptGrade = `You are grading student answer pages against the rubric below. Score each
question, include per-question confidence between 0 and 1, and brief
feedback. Respond with JSON:
{"score":0,"confidence":0,"feedback":"","questions":[{"question_id":"","score":0,"max_score":0,"confidence":0,"feedback":""}]}`
)
