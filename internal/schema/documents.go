package schema

// Schema documents for every structured artifact. Required fields match the
// data model; additional properties are allowed everywhere so providers can
// return extra commentary without failing a stage.

const stringArray = `{"type": "array", "items": {"type": "string"}}`

const ContextAnalysis = `{
  "type": "object",
  "required": ["job_requirements", "company_culture", "key_skills_matched"],
  "properties": {
    "job_requirements": ` + stringArray + `,
    "company_culture": ` + stringArray + `,
    "key_skills_matched": ` + stringArray + `
  }
}`

const Strategy = `{
  "type": "object",
  "required": ["approach", "key_points"],
  "properties": {
    "approach": {"type": "string"},
    "key_points": ` + stringArray + `
  }
}`

const contact = `{
  "type": "object",
  "required": ["name", "email", "phone"],
  "properties": {
    "name": {"type": "string"},
    "email": {"type": "string"},
    "phone": {"type": "string"}
  }
}`

const GeneratedContent = `{
  "type": "object",
  "required": ["email", "memo"],
  "properties": {
    "email": {
      "type": "object",
      "required": ["subject_line", "greeting", "body_paragraphs", "closing", "signature"],
      "properties": {
        "subject_line": {"type": "string"},
        "greeting": {"type": "string"},
        "body_paragraphs": ` + stringArray + `,
        "closing": {"type": "string"},
        "signature": {"type": "string"},
        "follow_up_note": {"type": "string"}
      }
    },
    "memo": {
      "type": "object",
      "required": ["title", "author_info", "sections"],
      "properties": {
        "title": {"type": "string"},
        "author_info": ` + contact + `,
        "sections": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["title", "content"],
            "properties": {
              "title": {"type": "string"},
              "content": {"type": "string"}
            }
          }
        }
      }
    }
  }
}`

const QualityReview = `{
  "type": "object",
  "required": ["overall_score"],
  "properties": {
    "overall_score": {"type": "number", "minimum": 0, "maximum": 100}
  }
}`

// ResumeData requires the four top-level sections. Entry fields are typed
// but optional since résumés routinely leave some of them blank.
const ResumeData = `{
  "type": "object",
  "required": ["experience", "skills", "education", "contact"],
  "properties": {
    "experience": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": "string"},
          "company": {"type": "string"},
          "duration": {"type": "string"},
          "highlights": ` + stringArray + `
        }
      }
    },
    "skills": ` + stringArray + `,
    "education": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "degree": {"type": "string"},
          "school": {"type": "string"},
          "year": {"type": "string"}
        }
      }
    },
    "contact": {
      "type": "object",
      "properties": {
        "name": {"type": "string"},
        "email": {"type": "string"},
        "phone": {"type": "string"}
      }
    }
  }
}`
