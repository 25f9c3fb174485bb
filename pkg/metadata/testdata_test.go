package metadata

const testBundle = `
app:
  acl:
    valuePermissionList: [assignmentPermission, userPermission, portalPermission]
    permissionDefaults:
      assignmentPermission: team
scopes:
  Lead: {entity: true, acl: true, stream: true}
  Case: {entity: true, acl: true, aclPortal: true}
  Account: {entity: true, acl: true, aclPortal: true}
  Contact: {entity: true, acl: true, aclPortal: true}
  Import: {entity: true, acl: boolean}
  Team: {entity: true, acl: false}
  KnowledgeBaseArticle: {entity: true, acl: true, aclPortal: true, aclActionList: [read, edit]}
entityDefs:
  Lead:
    fields:
      name: {type: varchar}
      assignedUser: {type: link}
      createdBy: {type: link}
      teams: {type: linkMultiple}
      salary: {type: currency}
    links:
      teams: {type: hasMany, entity: Team, relationName: entityTeam}
      account: {type: belongsTo, entity: Account}
  Case:
    fields:
      createdBy: {type: link}
      assignedUsers: {type: linkMultiple}
    links:
      account: {type: belongsTo, entity: Account}
      contacts: {type: hasMany, entity: Contact, relationName: caseContact, midKeys: [caseId, contactId]}
  Task:
    links:
      parent: {type: belongsToParent, entityList: [Contact, Account]}
  KnowledgeBaseArticle:
    fields:
      status: {type: enum, activeOptions: [Published, Archived]}
aclDefs:
  Task:
    contactLink: parent
entityAcl:
  Lead:
    fields:
      salary: {forbidden: true}
      name: {readOnly: true}
      notes: {}
`
